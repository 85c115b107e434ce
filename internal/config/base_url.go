package config

import (
	"net"
	"strings"
)

// interfaceAddrs se reemplaza en tests.
var interfaceAddrs = net.InterfaceAddrs

// ServerBaseURL arma la URL base usada para links absolutos de audio.
func (c *Config) ServerBaseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.ServerURL), "/"); u != "" {
		return u
	}
	port := c.HTTPPort
	if port == "" {
		port = "8080"
	}
	if c.IsDevelopment() {
		return "http://localhost:" + port
	}
	if ip := firstExternalIPv4(); ip != "" {
		return "http://" + ip + ":" + port
	}
	return "http://localhost:" + port
}

func firstExternalIPv4() string {
	addrs, err := interfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginWindow      = 10 * time.Minute
	loginMaxAttempts = 5
)

// LoginLimiter limita intentos de login por email.
type LoginLimiter interface {
	Allow(key string) bool
}

type memoryLoginLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemoryLoginLimiter(window time.Duration, max int) LoginLimiter {
	if max <= 0 {
		max = loginMaxAttempts
	}
	if window <= 0 {
		window = loginWindow
	}
	return &memoryLoginLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryLoginLimiter) Allow(key string) bool {
	key = normalizeEmail(key)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// INCR + EXPIRE atómico: la ventana arranca con el primer intento.
const redisLoginAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisLoginLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

func NewRedisLoginLimiter(client *redis.Client, window time.Duration, max int) LoginLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = loginWindow
	}
	if max <= 0 {
		max = loginMaxAttempts
	}
	return &redisLoginLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "auth:login:rl:",
	}
}

// Allow deja pasar si redis falla: un corte de redis no bloquea el login.
func (l *redisLoginLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key = normalizeEmail(key)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = int(loginWindow.Seconds())
	}
	count, err := l.client.Eval(ctx, redisLoginAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

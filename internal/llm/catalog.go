package llm

import "strings"

// ModelConfig describe los parámetros por defecto de un modelo conocido.
type ModelConfig struct {
	Name          string
	ProviderModel string
	MaxTokens     int
	Temperature   float64
	TopP          float64
}

// Catalog resuelve nombres de modelo del cliente a parámetros del proveedor.
type Catalog map[string]ModelConfig

func DefaultCatalog() Catalog {
	return Catalog{
		"gpt-3.5-turbo":       {Name: "gpt-3.5-turbo", ProviderModel: "gpt-3.5-turbo", MaxTokens: 1000, Temperature: 0.7, TopP: 1},
		"gpt-4":               {Name: "gpt-4", ProviderModel: "gpt-4", MaxTokens: 2000, Temperature: 0.7, TopP: 1},
		"gpt-4-turbo-preview": {Name: "gpt-4-turbo-preview", ProviderModel: "gpt-4-turbo-preview", MaxTokens: 4000, Temperature: 0.7, TopP: 1},
		"deepseek-r1":         {Name: "deepseek-r1", ProviderModel: "deepseek/deepseek-r1:free", MaxTokens: 2000, Temperature: 0.7, TopP: 1},
	}
}

// Lookup nunca falla: un nombre desconocido pasa tal cual con defaults.
func (c Catalog) Lookup(name string) ModelConfig {
	key := strings.ToLower(strings.TrimSpace(name))
	if cfg, ok := c[key]; ok {
		return cfg
	}
	return ModelConfig{Name: name, ProviderModel: strings.TrimSpace(name), MaxTokens: 2000, Temperature: 0.7, TopP: 1}
}

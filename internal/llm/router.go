package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"poetry-tutor/internal/config"
)

type AdapterKind string

const (
	KindOpenAI   AdapterKind = "openai"
	KindDeepSeek AdapterKind = "deepseek"
)

// ModelRouter elige el adapter según el nombre de modelo pedido.
type ModelRouter struct {
	defaultKind  AdapterKind
	defaultModel string
	adapters     map[AdapterKind]Adapter
	catalog      Catalog
}

func NewModelRouterWithAdapters(defaultKind AdapterKind, defaultModel string, adapters map[AdapterKind]Adapter, catalog Catalog) *ModelRouter {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &ModelRouter{
		defaultKind:  defaultKind,
		defaultModel: defaultModel,
		adapters:     adapters,
		catalog:      catalog,
	}
}

// NewModelRouter arma los adapters habilitados por configuración. Falla si el
// proveedor por defecto no quedó configurado.
func NewModelRouter(cfg *config.Config, logger *zap.Logger) (*ModelRouter, *OpenAIAdapter, error) {
	adapters := make(map[AdapterKind]Adapter)
	var openAI *OpenAIAdapter
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		openAI = NewOpenAIAdapter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMTimeout, logger)
		adapters[KindOpenAI] = openAI
	}
	if strings.TrimSpace(cfg.DeepSeekAPIKey) != "" {
		adapters[KindDeepSeek] = NewDeepSeekAdapter(cfg.DeepSeekBaseURL, cfg.DeepSeekAPIKey, cfg.LLMTimeout, logger)
	}
	if len(adapters) == 0 {
		return nil, nil, fmt.Errorf("no LLM adapters configured: %w", ErrAdapterNotConfigured)
	}
	kind := AdapterKind(strings.ToLower(strings.TrimSpace(cfg.DefaultProvider)))
	if _, ok := adapters[kind]; !ok {
		return nil, nil, fmt.Errorf("default provider %q: %w", kind, ErrAdapterNotConfigured)
	}
	return NewModelRouterWithAdapters(kind, cfg.DefaultModel, adapters, DefaultCatalog()), openAI, nil
}

// Resolve es coincidencia pura de substrings; sin match devuelve el default.
func (r *ModelRouter) Resolve(hint string) AdapterKind {
	h := strings.ToLower(hint)
	switch {
	case strings.Contains(h, "gpt"):
		return KindOpenAI
	case strings.Contains(h, "deepseek"):
		return KindDeepSeek
	default:
		return r.defaultKind
	}
}

// Route devuelve el adapter y la configuración del modelo para hint. Un hint
// vacío usa el modelo por defecto.
func (r *ModelRouter) Route(hint string) (Adapter, ModelConfig, error) {
	name := strings.TrimSpace(hint)
	if name == "" {
		name = r.defaultModel
	}
	kind := r.Resolve(name)
	adapter, ok := r.adapters[kind]
	if !ok || adapter == nil {
		return nil, ModelConfig{}, fmt.Errorf("%s: %w", kind, ErrAdapterNotConfigured)
	}
	return adapter, r.catalog.Lookup(name), nil
}

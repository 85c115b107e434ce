package llm

import "context"

// Embedder convierte texto en un vector para búsqueda por similitud.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type OpenAIEmbedder struct {
	adapter *OpenAIAdapter
	model   string
}

func NewOpenAIEmbedder(adapter *OpenAIAdapter, model string) *OpenAIEmbedder {
	if adapter == nil {
		return nil
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{adapter: adapter, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.adapter.embed(ctx, e.model, text)
}

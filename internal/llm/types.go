package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest se arma por llamada y no se persiste.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stream      bool
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type CompletionResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// StreamSink recibe los fragmentos de una completion en streaming.
// Si OnFragment devuelve error el adapter deja de leer y lo reporta por OnError.
// Se invoca exactamente uno de OnDone u OnError.
type StreamSink interface {
	OnFragment(text string) error
	OnDone(result CompletionResult)
	OnError(err error)
}

// Adapter envuelve un proveedor de LLM.
type Adapter interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	CompleteStreaming(ctx context.Context, req CompletionRequest, sink StreamSink)
}

func validateRequest(req CompletionRequest) error {
	if len(req.Messages) == 0 {
		return ErrNoMessages
	}
	if req.Model == "" {
		return ErrNoModel
	}
	return nil
}

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DeepSeekAdapter habla con un endpoint OpenAI-compatible (DeepSeek directo u
// OpenRouter) usando HTTP plano y leyendo el SSE línea por línea.
type DeepSeekAdapter struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewDeepSeekAdapter construye el adapter apuntando a /chat/completions.
func NewDeepSeekAdapter(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *DeepSeekAdapter {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// timeout solo aplica a Complete; los streams los limita el contexto.
	return &DeepSeekAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

func (a *DeepSeekAdapter) Name() string { return string(KindDeepSeek) }

func (a *DeepSeekAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if err := validateRequest(req); err != nil {
		return CompletionResult{}, err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.do(ctx, req, false)
	if err != nil {
		return CompletionResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResult{}, upstream(a.Name(), 0, fmt.Errorf("read response: %w", err))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return CompletionResult{}, upstream(a.Name(), 0, fmt.Errorf("unmarshal response: %w", err))
	}
	if cr.Error != nil {
		return CompletionResult{}, upstream(a.Name(), 0, fmt.Errorf("api error: %s", cr.Error.Message))
	}
	if len(cr.Choices) == 0 {
		return CompletionResult{}, upstream(a.Name(), 0, ErrEmptyResponse)
	}

	result := CompletionResult{
		Content: cr.Choices[0].Message.Content,
		Model:   cr.Model,
	}
	if cr.Usage != nil {
		result.Usage = cr.Usage.toUsage()
	}
	return result, nil
}

func (a *DeepSeekAdapter) CompleteStreaming(ctx context.Context, req CompletionRequest, sink StreamSink) {
	life := newStreamLifecycle(sink)
	if err := validateRequest(req); err != nil {
		life.fail(err)
		return
	}

	life.connect()
	resp, err := a.do(ctx, req, true)
	if err != nil {
		life.fail(err)
		return
	}
	defer resp.Body.Close()

	var (
		content strings.Builder
		usage   *Usage
		model   = req.Model
	)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			life.fail(upstream(a.Name(), 0, fmt.Errorf("read stream: %w", err)))
			return
		}
		eof := errors.Is(err, io.EOF)

		data, ok := sseData(line)
		if ok {
			if data == "[DONE]" {
				break
			}
			var chunk streamChunk
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr != nil {
				a.logger.Warn("skipping malformed stream chunk", zap.Error(jsonErr), zap.String("raw_line", data))
			} else {
				if chunk.Model != "" {
					model = chunk.Model
				}
				if chunk.Usage != nil {
					usage = chunk.Usage.toUsage()
				}
				for _, choice := range chunk.Choices {
					if choice.Delta.Content == "" {
						continue
					}
					content.WriteString(choice.Delta.Content)
					if err := life.fragment(sink, choice.Delta.Content); err != nil {
						return
					}
				}
			}
		}
		if eof {
			break
		}
	}

	if usage == nil {
		usage = &Usage{}
	}
	life.complete(CompletionResult{Content: content.String(), Model: model, Usage: usage})
}

func (a *DeepSeekAdapter) do(ctx context.Context, req CompletionRequest, stream bool) (*http.Response, error) {
	bodyBytes, err := json.Marshal(newChatRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, upstream(a.Name(), 0, fmt.Errorf("do request: %w", err))
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		a.logger.Warn("llm error status", zap.String("provider", a.Name()), zap.Int("status", resp.StatusCode), zap.ByteString("body", b))
		return nil, upstream(a.Name(), resp.StatusCode, errors.New(strings.TrimSpace(string(b))))
	}
	return resp, nil
}

// sseData devuelve el payload de una línea "data:". Comentarios y otras líneas se ignoran.
func sseData(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatRequest(req CompletionRequest, stream bool) chatRequest {
	msgs := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u usagePayload) toUsage() *Usage {
	return &Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage,omitempty"`
}

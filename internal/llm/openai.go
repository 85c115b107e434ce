package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIAdapter usa el SDK oficial. Los reintentos del SDK se desactivan: la
// política de reintentos pertenece al caller.
type OpenAIAdapter struct {
	client  openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewOpenAIAdapter(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *OpenAIAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
		option.WithMiddleware(skipMalformedEvents(string(KindOpenAI), logger)),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &OpenAIAdapter{
		client:  openai.NewClient(opts...),
		timeout: timeout,
		logger:  logger,
	}
}

func (a *OpenAIAdapter) Name() string { return string(KindOpenAI) }

func (a *OpenAIAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if err := validateRequest(req); err != nil {
		return CompletionResult{}, err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	completion, err := a.client.Chat.Completions.New(ctx, a.params(req))
	if err != nil {
		return CompletionResult{}, a.wrapErr(err)
	}
	if len(completion.Choices) == 0 {
		return CompletionResult{}, upstream(a.Name(), 0, ErrEmptyResponse)
	}
	return CompletionResult{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Usage: &Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (a *OpenAIAdapter) CompleteStreaming(ctx context.Context, req CompletionRequest, sink StreamSink) {
	life := newStreamLifecycle(sink)
	if err := validateRequest(req); err != nil {
		life.fail(err)
		return
	}

	params := a.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	life.connect()
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		content strings.Builder
		usage   = &Usage{}
		model   = req.Model
	)
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage.TotalTokens > 0 {
			usage = &Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
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

	if err := stream.Err(); err != nil {
		// Los eventos inválidos ya se filtraron; un error de decode aquí es un
		// chunk JSON con forma inesperada y se conserva lo recibido.
		if isDecodeError(err) {
			a.logger.Warn("malformed stream chunk, closing stream", zap.String("provider", a.Name()), zap.Error(err))
		} else {
			life.fail(a.wrapErr(err))
			return
		}
	}
	life.complete(CompletionResult{Content: content.String(), Model: model, Usage: usage})
}

// embed llama al endpoint de embeddings.
func (a *OpenAIAdapter) embed(ctx context.Context, model, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embed: empty text")
	}
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, a.wrapErr(err)
	}
	if len(resp.Data) == 0 {
		return nil, upstream(a.Name(), 0, ErrEmptyResponse)
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (a *OpenAIAdapter) params(req CompletionRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, toOpenAIMessage(m))
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(req.Model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	return params
}

func (a *OpenAIAdapter) wrapErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = apiErr.Error()
		}
		return upstream(a.Name(), apiErr.StatusCode, errors.New(msg))
	}
	return upstream(a.Name(), 0, err)
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content)
	case RoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

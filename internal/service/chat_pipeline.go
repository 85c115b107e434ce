package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/logging"
	"poetry-tutor/internal/repository"
	"poetry-tutor/internal/speech"
)

const (
	pipelineMaxTokens   = 4000
	pipelineTemperature = 0.7
	historyLimit        = 50

	defaultChatVoice       = "en-US-JennyNeural"
	defaultStreamThreshold = 1024 * 1024

	embeddedAudioTTL = 5 * time.Second
	linkedAudioTTL   = 60 * time.Second
	streamedAudioTTL = 10 * time.Second

	placeholderText = "I'm thinking..."
	fallbackText    = "I'm sorry, I couldn't generate a response. Please try again."
	apologyText     = "I apologize, but I encountered an error while generating a response."

	StatusGenerated       = "AI response generated successfully"
	StatusEmbeddedAudio   = "AI response generated successfully with embedded audio"
	StatusStreamableAudio = "AI response generated successfully (audio available for streaming)"
	StatusAudioURLOnly    = "AI response generated successfully (with audio URL only)"
	StatusTTSFailed       = "AI response generated successfully (TTS generation failed)"

	audioErrorTTS    = "TTS generation failed"
	StreamAudioError = "Failed to generate audio"
)

// AudioCleaner programa el borrado de los audios temporales.
type AudioCleaner interface {
	DeleteAfter(path string, delay time.Duration)
}

// PoemContextProvider arma el contexto opcional de poemas.
type PoemContextProvider interface {
	Context(ctx context.Context, userMessage string) (string, error)
}

type PipelineConfig struct {
	DefaultVoice    string
	StreamThreshold int64
}

// ChatPipeline encadena persistencia, completion y síntesis de voz para un mensaje.
type ChatPipeline struct {
	chats     *ChatService
	messages  repository.MessageRepository
	router    *llm.ModelRouter
	assembler *ConversationAssembler
	poems     PoemContextProvider
	speaker   speech.Synthesizer
	cleaner   AudioCleaner
	cfg       PipelineConfig
	logger    *zap.Logger
}

// NewChatPipeline acepta poems nil cuando el contexto de poemas está deshabilitado.
func NewChatPipeline(
	chats *ChatService,
	messages repository.MessageRepository,
	router *llm.ModelRouter,
	assembler *ConversationAssembler,
	poems PoemContextProvider,
	speaker speech.Synthesizer,
	cleaner AudioCleaner,
	cfg PipelineConfig,
	logger *zap.Logger,
) *ChatPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assembler == nil {
		assembler = NewConversationAssembler(0)
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		cfg.DefaultVoice = defaultChatVoice
	}
	if cfg.StreamThreshold <= 0 {
		cfg.StreamThreshold = defaultStreamThreshold
	}
	return &ChatPipeline{
		chats:     chats,
		messages:  messages,
		router:    router,
		assembler: assembler,
		poems:     poems,
		speaker:   speaker,
		cleaner:   cleaner,
		cfg:       cfg,
		logger:    logger,
	}
}

type ProcessInput struct {
	Actor         Actor
	ChatID        string
	Content       string
	ModelName     string
	VoiceID       string
	Lang          string
	SendAudioData bool
}

// AudioPayload describe el audio adjunto a la respuesta. Error no vacío indica
// que la síntesis falló y el resto de los campos queda vacío.
type AudioPayload struct {
	URL          string  `json:"url,omitempty"`
	Data         string  `json:"data,omitempty"`
	FileSize     int64   `json:"fileSize,omitempty"`
	ContentType  string  `json:"contentType,omitempty"`
	VoiceID      string  `json:"voiceId,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Streaming    bool    `json:"streaming,omitempty"`
	Error        string  `json:"error,omitempty"`
	ErrorDetails string  `json:"errorDetails,omitempty"`
}

type ProcessOutput struct {
	Status      string
	UserMessage domain.Message
	AIMessage   domain.Message
	Audio       AudioPayload
	Usage       *llm.Usage
}

// StreamEvents recibe los eventos de un stream. Un error de Fragment indica
// que el cliente ya no escucha.
type StreamEvents interface {
	Fragment(messageID, text string) error
	Audio(messageID string, audio speech.AudioArtifact) error
	AudioError(messageID, reason string) error
}

// Validate revisa el input antes de tocar la base o el proveedor.
func (in ProcessInput) Validate() error {
	if strings.TrimSpace(in.ChatID) == "" {
		return invalid("chatId", "required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return invalid("message.content", "required")
	}
	return nil
}

// Process genera la respuesta completa y su audio.
func (p *ChatPipeline) Process(ctx context.Context, in ProcessInput) (ProcessOutput, error) {
	defer logging.Duration(p.logger, "process_message")()

	prepared, err := p.prepare(ctx, in)
	if err != nil {
		return ProcessOutput{}, err
	}

	result, err := prepared.adapter.Complete(ctx, prepared.request)
	if err != nil {
		p.logger.Error("completion failed",
			zap.String("chat_id", prepared.user.ChatID),
			zap.String("provider", prepared.adapter.Name()),
			zap.Error(err),
		)
		return ProcessOutput{}, err
	}

	content := strings.TrimSpace(result.Content)
	if content == "" {
		content = fallbackText
	}
	ai := newAIMessage(prepared.user.ChatID, prepared.user.UserID, prepared.user.ID, content, false)
	if err := p.messages.Create(ctx, ai); err != nil {
		return ProcessOutput{}, persistence("ai message", err)
	}

	out := ProcessOutput{
		Status:      StatusGenerated,
		UserMessage: prepared.user,
		AIMessage:   ai,
		Usage:       result.Usage,
	}
	out.Status, out.Audio = p.attachAudio(ctx, ai, p.voice(in), in.SendAudioData)
	return out, nil
}

// Stream envía fragmentos a events a medida que llegan. Los errores previos al
// primer fragmento y los del proveedor se devuelven; el caller los convierte
// en un evento de error.
func (p *ChatPipeline) Stream(ctx context.Context, in ProcessInput, events StreamEvents) error {
	defer logging.Duration(p.logger, "stream_message")()

	prepared, err := p.prepare(ctx, in)
	if err != nil {
		return err
	}

	ai := newAIMessage(prepared.user.ChatID, prepared.user.UserID, prepared.user.ID, placeholderText, true)
	if err := p.messages.Create(ctx, ai); err != nil {
		return persistence("ai placeholder", err)
	}

	sink := &pipelineSink{events: events, messageID: ai.ID}
	prepared.request.Stream = true
	prepared.adapter.CompleteStreaming(ctx, prepared.request, sink)

	// La finalización corre aunque el cliente se haya ido.
	finalizeCtx := context.WithoutCancel(ctx)

	if sink.err != nil {
		p.logger.Error("stream completion failed",
			zap.String("message_id", ai.ID),
			zap.String("provider", prepared.adapter.Name()),
			zap.Error(sink.err),
		)
		if err := p.messages.FinalizeStreaming(finalizeCtx, ai.ID, apologyText); err != nil {
			p.logger.Error("finalize failed stream message", zap.String("message_id", ai.ID), zap.Error(err))
		}
		return sink.err
	}

	content := strings.TrimSpace(sink.result.Content)
	if content == "" {
		content = fallbackText
	}
	if err := p.messages.FinalizeStreaming(finalizeCtx, ai.ID, content); err != nil {
		return persistence("finalize ai message", err)
	}

	if p.speaker == nil {
		return events.AudioError(ai.ID, StreamAudioError)
	}
	artifact, err := p.speaker.Speak(ctx, speech.SpeakRequest{
		Text:       content,
		VoiceID:    p.voice(in),
		OutputName: speech.TTSFileName(ai.ID),
	})
	if err != nil {
		p.logger.Warn("stream tts failed", zap.String("message_id", ai.ID), zap.Error(err))
		return events.AudioError(ai.ID, StreamAudioError)
	}
	p.scheduleDelete(artifact.LocalPath, streamedAudioTTL)
	return events.Audio(ai.ID, artifact)
}

// Generate es una completion programática sin persistencia.
func (p *ChatPipeline) Generate(ctx context.Context, systemPrompt, prompt, model string) (llm.CompletionResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return llm.CompletionResult{}, invalid("prompt", "required")
	}
	adapter, mc, err := p.router.Route(model)
	if err != nil {
		return llm.CompletionResult{}, err
	}
	var msgs []llm.Message
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})
	return adapter.Complete(ctx, llm.CompletionRequest{
		Messages:    msgs,
		Model:       mc.ProviderModel,
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
		TopP:        mc.TopP,
	})
}

type preparedTurn struct {
	user    domain.Message
	adapter llm.Adapter
	request llm.CompletionRequest
}

func (p *ChatPipeline) prepare(ctx context.Context, in ProcessInput) (preparedTurn, error) {
	if err := in.Validate(); err != nil {
		return preparedTurn{}, err
	}
	chatID := strings.TrimSpace(in.ChatID)
	if _, err := p.chats.Get(ctx, in.Actor, chatID); err != nil {
		return preparedTurn{}, err
	}
	adapter, mc, err := p.router.Route(in.ModelName)
	if err != nil {
		return preparedTurn{}, err
	}

	content := strings.TrimSpace(in.Content)
	user := newUserMessage(chatID, in.Actor.UserID, content)
	if err := p.messages.Create(ctx, user); err != nil {
		return preparedTurn{}, persistence("user message", err)
	}

	history, err := p.messages.ListRecentByChat(ctx, chatID, historyLimit)
	if err != nil {
		return preparedTurn{}, persistence("load history", err)
	}

	var extra []string
	if p.poems != nil {
		poemCtx, err := p.poems.Context(ctx, content)
		if err != nil {
			return preparedTurn{}, err
		}
		extra = append(extra, poemCtx)
	}

	return preparedTurn{
		user:    user,
		adapter: adapter,
		request: llm.CompletionRequest{
			Messages:    p.assembler.Build(p.lang(in), history, extra, content),
			Model:       mc.ProviderModel,
			Temperature: pipelineTemperature,
			MaxTokens:   pipelineMaxTokens,
			TopP:        mc.TopP,
		},
	}, nil
}

func (p *ChatPipeline) attachAudio(ctx context.Context, ai domain.Message, voice string, sendData bool) (string, AudioPayload) {
	if p.speaker == nil {
		return StatusTTSFailed, AudioPayload{Error: audioErrorTTS, ErrorDetails: "speech synthesizer not configured"}
	}
	artifact, err := p.speaker.Speak(ctx, speech.SpeakRequest{
		Text:       ai.Content.Text,
		VoiceID:    voice,
		OutputName: speech.TTSFileName(ai.ID),
	})
	if err != nil {
		p.logger.Warn("tts failed", zap.String("message_id", ai.ID), zap.Error(err))
		return StatusTTSFailed, AudioPayload{Error: audioErrorTTS, ErrorDetails: err.Error()}
	}

	audio := AudioPayload{
		URL:         artifact.URL,
		FileSize:    artifact.FileSize,
		ContentType: artifact.ContentType,
		VoiceID:     artifact.VoiceID,
		Duration:    artifact.DurationSeconds,
	}
	switch {
	case !sendData:
		p.scheduleDelete(artifact.LocalPath, linkedAudioTTL)
		return StatusGenerated, audio
	case artifact.FileSize > p.cfg.StreamThreshold:
		audio.Streaming = true
		p.scheduleDelete(artifact.LocalPath, linkedAudioTTL)
		return StatusStreamableAudio, audio
	case artifact.Base64Data == "":
		p.scheduleDelete(artifact.LocalPath, linkedAudioTTL)
		return StatusAudioURLOnly, audio
	default:
		audio.Data = artifact.Base64Data
		p.scheduleDelete(artifact.LocalPath, embeddedAudioTTL)
		return StatusEmbeddedAudio, audio
	}
}

func (p *ChatPipeline) scheduleDelete(path string, delay time.Duration) {
	if p.cleaner == nil || path == "" {
		return
	}
	p.cleaner.DeleteAfter(path, delay)
}

func (p *ChatPipeline) voice(in ProcessInput) string {
	if v := strings.TrimSpace(in.VoiceID); v != "" {
		return v
	}
	return p.cfg.DefaultVoice
}

// lang usa el idioma pedido o lo deduce de la voz.
func (p *ChatPipeline) lang(in ProcessInput) string {
	if in.Lang != "" {
		return in.Lang
	}
	if strings.HasPrefix(strings.ToLower(p.voice(in)), "zh") {
		return LangChinese
	}
	return LangEnglish
}

// pipelineSink adapta StreamEvents a llm.StreamSink. El adapter es síncrono:
// al volver CompleteStreaming, result o err quedan fijados.
type pipelineSink struct {
	events    StreamEvents
	messageID string
	result    llm.CompletionResult
	err       error
}

func (s *pipelineSink) OnFragment(text string) error {
	return s.events.Fragment(s.messageID, text)
}

func (s *pipelineSink) OnDone(result llm.CompletionResult) { s.result = result }

func (s *pipelineSink) OnError(err error) {
	if err == nil {
		err = errors.New("stream failed")
	}
	s.err = err
}

package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/service"
	"poetry-tutor/internal/speech"
)

// AIHandler agrupa los endpoints que llaman al modelo o al TTS.
type AIHandler struct {
	logger    *zap.Logger
	pipeline  *service.ChatPipeline
	narration *service.NarrationService
	messages  *service.MessageService
	voices    speech.VoiceLister
	audio     *speech.AudioStore
}

func NewAIHandler(
	logger *zap.Logger,
	pipeline *service.ChatPipeline,
	narration *service.NarrationService,
	messages *service.MessageService,
	voices speech.VoiceLister,
	audio *speech.AudioStore,
) *AIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIHandler{
		logger:    logger,
		pipeline:  pipeline,
		narration: narration,
		messages:  messages,
		voices:    voices,
		audio:     audio,
	}
}

type chatMessageRequest struct {
	Message struct {
		ChatID  string `json:"chatId"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"message"`
	ModelName string `json:"modelName"`
	Lang      string `json:"lang"`
	Options   struct {
		VoiceID       string `json:"voiceId"`
		SendAudioData bool   `json:"sendAudioData"`
	} `json:"options"`
}

func (r chatMessageRequest) input(actor service.Actor) service.ProcessInput {
	return service.ProcessInput{
		Actor:         actor,
		ChatID:        r.Message.ChatID,
		Content:       r.Message.Message.Content,
		ModelName:     r.ModelName,
		VoiceID:       r.Options.VoiceID,
		Lang:          r.Lang,
		SendAudioData: r.Options.SendAudioData,
	}
}

type processResponse struct {
	domain.Message
	UserMessage domain.Message       `json:"userMessage"`
	Audio       service.AudioPayload `json:"audio"`
	Usage       *llm.Usage           `json:"usage,omitempty"`
}

// ProcessMessage maneja POST /ai/chat/process-message.
func (h *AIHandler) ProcessMessage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	out, err := h.pipeline.Process(c.Request.Context(), req.input(actor))
	if err != nil {
		fail(c, h.logger, "process message", err)
		return
	}
	respond(c, http.StatusOK, out.Status, processResponse{
		Message:     out.AIMessage,
		UserMessage: out.UserMessage,
		Audio:       out.Audio,
		Usage:       out.Usage,
	})
}

// StreamMessage maneja POST /ai/chat/stream-message. Los errores de validación
// se responden como JSON; una vez abierto el stream, como evento SSE.
func (h *AIHandler) StreamMessage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	in := req.input(actor)
	if err := in.Validate(); err != nil {
		fail(c, h.logger, "stream message", err)
		return
	}

	stream := NewStreamResponder(c)
	stream.Open()
	defer stream.Done()

	err := h.pipeline.Stream(c.Request.Context(), in, stream)
	if err == nil || errors.Is(err, ErrClientGone) {
		return
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("stream message failed", zap.Error(err))
	}
	_ = stream.Error(status, msg)
}

// Voices maneja GET /ai/chat/tts-voices.
func (h *AIHandler) Voices(c *gin.Context) {
	if h.voices == nil {
		respond(c, http.StatusOK, "TTS voices retrieved successfully", speech.FallbackVoices())
		return
	}
	voices, err := h.voices.ListVoices(c.Request.Context())
	if err != nil || len(voices) == 0 {
		h.logger.Warn("list voices failed, using fallback", zap.Error(err))
		voices = speech.FallbackVoices()
	}
	respond(c, http.StatusOK, "TTS voices retrieved successfully", voices)
}

// StreamAudio maneja GET /ai/chat/stream-audio/:messageId. El archivo se borra
// después de enviarlo.
func (h *AIHandler) StreamAudio(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	messageID := c.Param("messageId")
	if _, err := h.messages.Get(c.Request.Context(), actor, messageID); err != nil {
		fail(c, h.logger, "stream audio", err)
		return
	}
	if h.audio == nil {
		respondError(c, http.StatusNotFound, "Audio file not found")
		return
	}
	name := speech.TTSFileName(messageID)
	path := h.audio.Path(name)
	f, size, err := h.audio.Open(path)
	if err != nil {
		respondError(c, http.StatusNotFound, "Audio file not found")
		return
	}
	defer f.Close()

	c.Header("Content-Type", speech.ContentTypeWAV)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		h.logger.Warn("stream audio interrupted", zap.String("message_id", messageID), zap.Error(err))
	}
	h.audio.Delete(path)
}

// Generate maneja POST /ai/generate.
func (h *AIHandler) Generate(c *gin.Context) {
	var req struct {
		Prompt       string `json:"prompt"`
		SystemPrompt string `json:"systemPrompt"`
		Model        string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	result, err := h.pipeline.Generate(c.Request.Context(), req.SystemPrompt, req.Prompt, req.Model)
	if err != nil {
		fail(c, h.logger, "generate", err)
		return
	}
	respond(c, http.StatusOK, "Response generated successfully", result)
}

// Narrate maneja POST /ai/poem-narration/generate.
func (h *AIHandler) Narrate(c *gin.Context) {
	var req struct {
		PoemID string `json:"poemId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data")
		return
	}
	if h.narration == nil {
		respondError(c, http.StatusServiceUnavailable, "narration not configured")
		return
	}
	result, err := h.narration.Narrate(c.Request.Context(), req.PoemID)
	if err != nil {
		fail(c, h.logger, "poem narration", err)
		return
	}
	respond(c, http.StatusOK, result.Status, result)
}

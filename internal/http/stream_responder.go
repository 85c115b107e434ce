package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"poetry-tutor/internal/speech"
)

var ErrClientGone = errors.New("stream client gone")

// StreamResponder escribe frames SSE de una sola consulta. Tras un fallo de
// escritura o la cancelación del request todos los envíos devuelven ErrClientGone.
type StreamResponder struct {
	mu     sync.Mutex
	w      gin.ResponseWriter
	ctx    context.Context
	opened bool
	closed bool
	done   bool
}

func NewStreamResponder(c *gin.Context) *StreamResponder {
	return &StreamResponder{w: c.Writer, ctx: c.Request.Context()}
}

type fragmentFrame struct {
	ID          string          `json:"_id"`
	Message     fragmentContent `json:"message"`
	IsStreaming bool            `json:"isStreaming"`
}

type fragmentContent struct {
	Content string `json:"content"`
}

type audioFrame struct {
	Type        string `json:"type"`
	MessageID   string `json:"messageId"`
	AudioURL    string `json:"audioUrl,omitempty"`
	VoiceID     string `json:"voiceId,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Data        string `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

type errorFrame struct {
	Success    bool   `json:"success"`
	Error      bool   `json:"error"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Open envía los headers de streaming. Es idempotente.
func (s *StreamResponder) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openLocked()
}

func (s *StreamResponder) openLocked() {
	if s.opened {
		return
	}
	s.opened = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.w.Flush()
}

func (s *StreamResponder) Fragment(messageID, text string) error {
	return s.send(fragmentFrame{ID: messageID, Message: fragmentContent{Content: text}, IsStreaming: true})
}

func (s *StreamResponder) Audio(messageID string, a speech.AudioArtifact) error {
	return s.send(audioFrame{
		Type:        "audio",
		MessageID:   messageID,
		AudioURL:    a.URL,
		VoiceID:     a.VoiceID,
		FileSize:    a.FileSize,
		ContentType: a.ContentType,
		Data:        a.Base64Data,
	})
}

func (s *StreamResponder) AudioError(messageID, reason string) error {
	return s.send(audioFrame{Type: "audio_error", MessageID: messageID, Error: reason})
}

// Error envía el evento de error; el caller igual debe llamar a Done.
func (s *StreamResponder) Error(status int, message string) error {
	return s.send(errorFrame{Success: false, Error: true, StatusCode: status, Message: message})
}

// Done escribe el sentinel final una única vez.
func (s *StreamResponder) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.openLocked()
	_ = s.writeLocked([]byte("data: [DONE]\n\n"))
}

func (s *StreamResponder) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrClientGone
	}
	s.openLocked()
	frame := make([]byte, 0, len(b)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, b...)
	frame = append(frame, "\n\n"...)
	return s.writeLocked(frame)
}

func (s *StreamResponder) writeLocked(frame []byte) error {
	if s.closed {
		return ErrClientGone
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		s.closed = true
		return ErrClientGone
	}
	if _, err := s.w.Write(frame); err != nil {
		s.closed = true
		return ErrClientGone
	}
	s.w.Flush()
	return nil
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ContentTypeWAV = "audio/wav"

	DefaultVoiceID = "zh-CN-XiaoxiaoNeural"
	DefaultRate    = "-20%"

	// bytesPerSecond estima la duración a partir del tamaño del archivo.
	bytesPerSecond = 16000
)

var (
	ErrEmptyText        = errors.New("speech: empty text")
	ErrRetriesExhausted = errors.New("speech: retries exhausted")
)

type SpeakRequest struct {
	Text       string
	VoiceID    string
	OutputName string
	Rate       string
}

// AudioArtifact vive poco: se crea, se entrega y se borra.
type AudioArtifact struct {
	URL             string  `json:"url"`
	LocalPath       string  `json:"-"`
	VoiceID         string  `json:"voiceId"`
	ContentType     string  `json:"contentType"`
	DurationSeconds float64 `json:"duration"`
	FileSize        int64   `json:"fileSize"`
	Base64Data      string  `json:"data,omitempty"`
}

// Synthesizer es el puerto hacia el motor de voz externo.
type Synthesizer interface {
	Speak(ctx context.Context, req SpeakRequest) (AudioArtifact, error)
}

// SynthesisError indica que el proceso de TTS falló o que no se pudo leer su salida.
type SynthesisError struct {
	Stderr string
	Err    error
}

func (e *SynthesisError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("speech synthesis failed: %v", e.Err)
	}
	return fmt.Sprintf("speech synthesis failed: %v: %s", e.Err, stderr)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// IsServiceUnavailable detecta errores transitorios del servicio de voz.
func IsServiceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"503",
		"service unavailable",
		"noaudioreceived",
		"wsserverhandshakeerror",
		"connection reset",
		"timed out",
		"timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

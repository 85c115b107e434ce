package speech

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy define reintentos acotados con backoff exponencial y rotación de voces.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Voices alternativas; se rota a la siguiente en cada reintento.
	Voices    []string
	Retryable func(error) bool
}

// FallbackVoiceIDs son las voces alternativas cuando no se configuran otras.
var FallbackVoiceIDs = []string{"zh-CN-YunxiNeural", "zh-CN-XiaoyiNeural"}

// DefaultRetryPolicy hace 3 intentos con 1s y 2s de espera. Sin voces usa FallbackVoiceIDs.
func DefaultRetryPolicy(voices ...string) RetryPolicy {
	if len(voices) == 0 {
		voices = FallbackVoiceIDs
	}
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Voices:      voices,
		Retryable:   IsServiceUnavailable,
	}
}

// Backoff devuelve la espera antes del intento attempt (1 = primer reintento).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Retrying envuelve un Synthesizer con una RetryPolicy.
type Retrying struct {
	next   Synthesizer
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

func WithRetry(next Synthesizer, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = IsServiceUnavailable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{next: next, policy: policy, sleep: sleepContext, logger: logger}
}

func (r *Retrying) Speak(ctx context.Context, req SpeakRequest) (AudioArtifact, error) {
	voices := r.rotation(req.VoiceID)
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.policy.Backoff(attempt)
			req.VoiceID = voices[attempt%len(voices)]
			r.logger.Warn("retrying speech synthesis",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.String("voice", req.VoiceID),
				zap.Error(lastErr),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return AudioArtifact{}, err
			}
		}
		art, err := r.next.Speak(ctx, req)
		if err == nil {
			return art, nil
		}
		lastErr = err
		if !r.policy.Retryable(err) {
			return AudioArtifact{}, err
		}
	}
	return AudioArtifact{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.policy.MaxAttempts, lastErr)
}

func (r *Retrying) rotation(primary string) []string {
	if primary == "" {
		primary = DefaultVoiceID
	}
	voices := []string{primary}
	for _, v := range r.policy.Voices {
		if v != "" && v != primary {
			voices = append(voices, v)
		}
	}
	return voices
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package speech

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	voiceCacheKey = "tts:voices"
	voiceCacheTTL = 24 * time.Hour
)

type redisStringKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedVoiceLister guarda en redis la lista de voces; solo se cachean listados exitosos.
type CachedVoiceLister struct {
	next   VoiceLister
	kv     redisStringKV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedVoiceLister devuelve next sin envolver si no hay cliente redis.
func NewCachedVoiceLister(next VoiceLister, client *redis.Client, logger *zap.Logger) VoiceLister {
	if client == nil {
		return next
	}
	return newCachedVoiceLister(next, client, logger)
}

func newCachedVoiceLister(next VoiceLister, kv redisStringKV, logger *zap.Logger) *CachedVoiceLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedVoiceLister{next: next, kv: kv, ttl: voiceCacheTTL, logger: logger}
}

func (c *CachedVoiceLister) ListVoices(ctx context.Context) ([]Voice, error) {
	raw, err := c.kv.Get(ctx, voiceCacheKey).Result()
	switch {
	case err == nil:
		var voices []Voice
		if jsonErr := json.Unmarshal([]byte(raw), &voices); jsonErr == nil && len(voices) > 0 {
			return voices, nil
		}
		c.logger.Warn("discarding invalid cached voice list")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("voice cache read failed", zap.Error(err))
	}

	voices, err := c.next.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(voices); jsonErr == nil {
		if setErr := c.kv.Set(ctx, voiceCacheKey, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("voice cache write failed", zap.Error(setErr))
		}
	}
	return voices, nil
}

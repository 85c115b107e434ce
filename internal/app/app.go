// Package app arma las dependencias compartidas por cmd/api y cmd/poemctl.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"poetry-tutor/internal/config"
	"poetry-tutor/internal/db"
	apihttp "poetry-tutor/internal/http"
	"poetry-tutor/internal/llm"
	"poetry-tutor/internal/repository"
	"poetry-tutor/internal/service"
	"poetry-tutor/internal/speech"
	"poetry-tutor/internal/storage"
)

const (
	loginWindow   = 10 * time.Minute
	loginAttempts = 5
)

// App contiene los servicios ya conectados a Postgres, Redis y los proveedores.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client

	JWT        *service.JWTService
	Users      *service.UserService
	Chats      *service.ChatService
	Messages   *service.MessageService
	Poems      *service.PoemService
	PoemAudio  *service.PoemAudioService
	Narration  *service.NarrationService
	Embeddings *service.EmbeddingService
	Pipeline   *service.ChatPipeline

	Audio  *speech.AudioStore
	Voices speech.VoiceLister
}

// New conecta la base, verifica el esquema y construye los servicios. Redis y
// MinIO son opcionales: sin ellos se usan las variantes en memoria y en disco.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := db.VerifySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("verify schema: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool}
	a.Redis = connectRedis(ctx, cfg, logger)

	var (
		tokenStore service.RefreshTokenStore
		limiter    service.LoginLimiter
	)
	if a.Redis != nil {
		tokenStore = service.NewRedisRefreshTokenStore(a.Redis)
		limiter = service.NewRedisLoginLimiter(a.Redis, loginWindow, loginAttempts)
	} else {
		tokenStore = service.NewMemoryRefreshTokenStore()
		limiter = service.NewMemoryLoginLimiter(loginWindow, loginAttempts)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	a.JWT = service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	router, openai, err := llm.NewModelRouter(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("model router: %w", err)
	}

	userRepo := repository.NewPgUserRepository(pool)
	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	poemRepo := repository.NewPgPoemRepository(pool)

	a.Audio = speech.NewAudioStore(cfg.AudioDir, cfg.ServerBaseURL(), logger)
	if err := a.Audio.EnsureDir(); err != nil {
		a.Close()
		return nil, fmt.Errorf("audio dir: %w", err)
	}
	speaker := chatSpeaker(cfg, a.Audio, nil, logger)
	a.Voices = speech.NewCachedVoiceLister(speaker, a.Redis, logger)

	objects, err := objectStore(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	newTTS := poemSynthesizers(cfg, poemRetryPolicy(cfg), nil, logger)

	// El tipo concreto nil no debe llegar a la interfaz.
	var embedder llm.Embedder
	if e := llm.NewOpenAIEmbedder(openai, cfg.EmbeddingModel); e != nil {
		embedder = e
	}

	a.Users = service.NewUserService(logger, userRepo, limiter)
	a.Chats = service.NewChatService(chatRepo)
	a.Messages = service.NewMessageService(a.Chats, messageRepo)
	a.Poems = service.NewPoemService(poemRepo)
	a.PoemAudio = service.NewPoemAudioService(poemRepo, newTTS, objects, "", logger)
	a.Narration = service.NewNarrationService(poemRepo, router, speaker, a.Audio, logger)
	a.Embeddings = service.NewEmbeddingService(poemRepo, embedder, logger)

	var poemContext service.PoemContextProvider
	if cfg.PoetryTraining {
		poemContext = service.NewPoemContextService(poemRepo, embedder, logger)
	}
	a.Pipeline = service.NewChatPipeline(
		a.Chats,
		messageRepo,
		router,
		service.NewConversationAssembler(cfg.MaxPromptMessages),
		poemContext,
		speaker,
		a.Audio,
		service.PipelineConfig{DefaultVoice: cfg.TTSDefaultVoice, StreamThreshold: cfg.AudioStreamThreshold},
		logger,
	)
	return a, nil
}

// Router monta los handlers HTTP sobre los servicios.
func (a *App) Router() http.Handler {
	return apihttp.NewRouter(a.Logger, a.JWT, apihttp.Handlers{
		Users:    apihttp.NewUserHandler(a.Logger, a.Users, a.JWT),
		Chats:    apihttp.NewChatHandler(a.Logger, a.Chats),
		Messages: apihttp.NewMessageHandler(a.Logger, a.Messages),
		Poems:    apihttp.NewPoemHandler(a.Logger, a.Poems, a.PoemAudio),
		AI:       apihttp.NewAIHandler(a.Logger, a.Pipeline, a.Narration, a.Messages, a.Voices, a.Audio),
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, a.Pool)
		},
	}, a.Audio.Dir())
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// chatSpeaker sintetiza para chat y narración, que responden en línea y no reintentan.
func chatSpeaker(cfg *config.Config, store *speech.AudioStore, runner speech.CommandRunner, logger *zap.Logger) *speech.EdgeTTS {
	return speech.NewEdgeTTS(cfg.TTSPython, store, runner, cfg.TTSTimeout, logger)
}

// poemRetryPolicy rota por TTS_FALLBACK_VOICES en cada reintento.
func poemRetryPolicy(cfg *config.Config) speech.RetryPolicy {
	return speech.DefaultRetryPolicy(cfg.TTSFallbackVoices...)
}

// poemSynthesizers arma los sintetizadores con reintentos del audio por lotes.
func poemSynthesizers(cfg *config.Config, policy speech.RetryPolicy, runner speech.CommandRunner, logger *zap.Logger) service.SynthesizerFactory {
	return func(dir string) speech.Synthesizer {
		store := speech.NewAudioStore(dir, cfg.ServerBaseURL(), logger)
		return speech.WithRetry(speech.NewEdgeTTS(cfg.TTSPython, store, runner, cfg.TTSTimeout, logger), policy, logger)
	}
}

// objectStore usa MinIO si está configurado y si no copia a AUDIO_DIR/poems.
func objectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.ObjectStore, error) {
	minioStore, err := storage.NewMinIOStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	if minioStore != nil {
		return minioStore, nil
	}
	logger.Info("minio not configured, storing poem audio on disk")
	return storage.NewLocalStore(
		filepath.Join(cfg.AudioDir, "poems"),
		cfg.ServerBaseURL()+speech.PublicAudioPrefix+"poems",
	), nil
}

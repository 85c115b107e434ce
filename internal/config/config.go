package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	DeepSeekAPIKey  string        `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL string        `env:"DEEPSEEK_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	DefaultProvider string        `env:"DEFAULT_PROVIDER" envDefault:"deepseek"`
	DefaultModel    string        `env:"DEFAULT_MODEL" envDefault:"deepseek-r1"`
	EmbeddingModel  string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	MaxHistoryMessages int  `env:"MAX_HISTORY_MESSAGES" envDefault:"50"`
	MaxPromptMessages  int  `env:"MAX_PROMPT_MESSAGES" envDefault:"40"`
	PoetryTraining     bool `env:"POETRY_TRAINING" envDefault:"false"`

	ServerURL            string        `env:"SERVER_URL"`
	AudioDir             string        `env:"AUDIO_DIR" envDefault:"dist"`
	TTSPython            string        `env:"TTS_PYTHON" envDefault:"python"`
	TTSTimeout           time.Duration `env:"TTS_TIMEOUT" envDefault:"60s"`
	TTSDefaultVoice      string        `env:"TTS_DEFAULT_VOICE" envDefault:"en-US-JennyNeural"`
	TTSFallbackVoices    []string      `env:"TTS_FALLBACK_VOICES" envSeparator:"," envDefault:"zh-CN-YunxiNeural,zh-CN-XiaoyiNeural"`
	AudioStreamThreshold int64         `env:"AUDIO_STREAM_THRESHOLD" envDefault:"1048576"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"poem-audio"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinIOPublicURL string `env:"MINIO_PUBLIC_URL"`

	LogDebug      bool   `env:"LOG_DEBUG" envDefault:"false"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
}

var (
	ErrNoProviderConfigured      = errors.New("no llm provider api key configured")
	ErrDefaultProviderNotEnabled = errors.New("default llm provider has no api key")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa que exista al menos un proveedor y que el default esté habilitado.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" && strings.TrimSpace(c.DeepSeekAPIKey) == "" {
		return ErrNoProviderConfigured
	}
	switch strings.ToLower(strings.TrimSpace(c.DefaultProvider)) {
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return ErrDefaultProviderNotEnabled
		}
	case "deepseek":
		if strings.TrimSpace(c.DeepSeekAPIKey) == "" {
			return ErrDefaultProviderNotEnabled
		}
	default:
		return errors.New("unknown default provider: " + c.DefaultProvider)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "development")
}

package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"poetry-tutor/internal/config"
)

// New construye el logger del servicio. Con LOG_FILE se duplica la salida a un
// archivo rotado por lumberjack.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.LogDebug {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, err
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zcfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  cfg.LogMaxSizeMB,
			MaxAge:   cfg.LogMaxAgeDays,
			Compress: true,
		}),
		zcfg.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// Duration permite: defer logging.Duration(logger, "step")()
func Duration(logger *zap.Logger, name string) func() {
	start := time.Now()
	return func() {
		if logger == nil {
			return
		}
		logger.Debug("step timed",
			zap.String("step", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poetry-tutor/internal/app"
	"poetry-tutor/internal/config"
	"poetry-tutor/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "poemctl",
	Short: "Herramientas de operación del tutor de poesía",
	Example: `  # Chat en la terminal sobre un chat existente
  $ poemctl chat --user <userId> --chat <chatId>

  # Generar el audio de un poema
  $ poemctl poem-audio <poemId>

  # Calcular embeddings pendientes
  $ poemctl embed --batch 50`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(chatCmd, poemAudioCmd, embedCmd, voicesCmd)
}

// setup carga .env, config y logger.
func setup() (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// withApp construye App, ejecuta fn y libera los recursos.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

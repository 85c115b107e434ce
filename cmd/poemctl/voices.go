package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poetry-tutor/internal/speech"
)

// voicesCmd no necesita base de datos: consulta edge-tts directamente.
var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Lista las voces de edge-tts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store := speech.NewAudioStore(cfg.AudioDir, cfg.ServerBaseURL(), logger)
		voices, err := speech.NewEdgeTTS(cfg.TTSPython, store, nil, cfg.TTSTimeout, logger).ListVoices(cmd.Context())
		if err != nil {
			logger.Warn("list voices failed, showing fallback", zap.Error(err))
			voices = speech.FallbackVoices()
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tGENDER")
		for _, v := range voices {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Language, v.Gender)
		}
		return w.Flush()
	},
}

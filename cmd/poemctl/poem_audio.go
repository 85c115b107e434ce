package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"poetry-tutor/internal/app"
)

var poemAudioForce bool

var poemAudioCmd = &cobra.Command{
	Use:   "poem-audio <poemId>...",
	Short: "Genera la lectura completa, por verso y por carácter de cada poema",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			for _, id := range args {
				if !poemAudioForce {
					exists, err := a.PoemAudio.Exists(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("poem %s: %w", id, err)
					}
					if exists {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: audio already generated, skipping (use --force)\n", id)
						continue
					}
				}
				res, err := a.PoemAudio.Generate(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("poem %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: full=%s lines=%d words=%d\n",
					id, res.FullReading.URL, len(res.Lines), len(res.Words))
			}
			return nil
		})
	},
}

func init() {
	poemAudioCmd.Flags().BoolVar(&poemAudioForce, "force", false, "regenerar aunque ya exista audio")
}

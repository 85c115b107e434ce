package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"poetry-tutor/internal/app"
)

var embedBatch int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Calcula los embeddings de los poemas que no tienen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			done, failed, err := a.Embeddings.Backfill(cmd.Context(), embedBatch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded=%d failed=%d\n", done, failed)
			return nil
		})
	},
}

func init() {
	embedCmd.Flags().IntVar(&embedBatch, "batch", 50, "poemas por consulta")
}

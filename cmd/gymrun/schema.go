package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ggoodman/gym-tcp-go/wire"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print JSON schemas of the wire messages",
		// Printing schemas needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make(map[string]any)
			for _, s := range wire.Schemas() {
				out[s.Name] = s.Schema
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

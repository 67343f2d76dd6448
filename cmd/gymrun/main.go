// Command gymrun drives environments on a gym TCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &app{}
	root := &cobra.Command{
		Use:           "gymrun",
		Short:         "Run agents against a gym TCP server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}
	root.PersistentFlags().StringSliceVar(&app.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&app.envName, "env", "", "environment id (overrides GYM_ENV)")

	root.AddCommand(newRunCmd(app), newEnsembleCmd(app), newSchemaCmd())
	return root
}

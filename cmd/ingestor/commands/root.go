package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/shared"
)

// cfg is loaded once per invocation, before any subcommand runs.
var cfg shared.Config

var rootCmd = &cobra.Command{
	Use:           "ingestor",
	Short:         "ingestor scrapes, labels and stores bank app reviews.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = shared.Load()
		log.Logger = observability.NewLogger(cfg.AppEnv, "ingestor")
		observability.Serve(cfg.MetricsAddr)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scheduleSpec string

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "", "five-field cron spec (default $INGEST_SCHEDULE)")
	rootCmd.AddCommand(scheduleCmd)
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-runs ingestion on a cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spec := cfg.Schedule
		if cmd.Flags().Changed("cron") {
			spec = scheduleSpec
		}

		ing, _, cleanup, err := pipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		cl := cronLogger{l: log.With().Str("component", "cron").Logger()}
		c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
		id, err := c.AddFunc(spec, func() {
			// a failed run is already recorded and logged by the service
			_, _ = ing.Run(ctx)
		})
		if err != nil {
			return err
		}
		c.Start()
		log.Info().Str("cron", spec).Time("next", c.Entry(id).Next).Msg("scheduler started")

		<-ctx.Done()
		log.Info().Msg("scheduler stopping, waiting for a running ingestion")
		<-c.Stop().Done()
		return nil
	},
}

package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bank_reviews/internal/domain"
)

var runFlags struct {
	source      string
	path        string
	scorer      string
	skipInvalid bool
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.source, "source", "", "raw record source: csv|scraper (default $SOURCE)")
	f.StringVar(&runFlags.path, "path", "", "CSV or JSON file for --source csv (default $SOURCE_PATH)")
	f.StringVar(&runFlags.scorer, "scorer", "", "lexicon|http-polarity|http-label (default $SCORER)")
	f.BoolVar(&runFlags.skipInvalid, "skip-invalid", false, "drop records with a bad date, rating or bank instead of aborting")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides the env config with flags given on the command line.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("source") {
		cfg.Source = runFlags.source
	}
	if f.Changed("path") {
		cfg.SourcePath = runFlags.path
	}
	if f.Changed("scorer") {
		cfg.Scorer = runFlags.scorer
	}
	if f.Changed("skip-invalid") {
		cfg.SkipInvalid = runFlags.skipInvalid
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one ingestion: fetch, clean, tag, label, assemble, persist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		ing, _, cleanup, err := pipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		rep, err := ing.Run(cmd.Context())
		printRun(rep)
		return err
	},
}

var stageOrder = []domain.Stage{
	domain.StageFetch, domain.StageClean, domain.StageTag, domain.StageLabel,
	domain.StageAssemble, domain.StagePersist, domain.StagePublish,
}

func printRun(rep domain.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("run " + rep.RunID)
	t.AppendHeader(table.Row{"Stage", "Records"})
	for _, s := range stageOrder {
		if n, ok := rep.Counts[s]; ok {
			t.AppendRow(table.Row{s, n})
		}
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"status", rep.Status})
	if rep.FailedStage != "" {
		t.AppendRow(table.Row{"failed stage", rep.FailedStage})
	}
	t.AppendRow(table.Row{"strategy", rep.Strategy})
	t.AppendRow(table.Row{"degraded", rep.Degraded})
	t.AppendRow(table.Row{"skipped", rep.Skipped})
	t.AppendRow(table.Row{"took", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

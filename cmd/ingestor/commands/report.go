package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bank_reviews/internal/app"
)

var reportFlags struct {
	minPerBank int
	topThemes  int
	strict     bool
}

func init() {
	f := reportCmd.Flags()
	f.IntVar(&reportFlags.minPerBank, "min-per-bank", 400, "reviews each bank should have")
	f.IntVar(&reportFlags.topThemes, "top", 5, "number of themes to list")
	f.BoolVar(&reportFlags.strict, "strict", false, "exit non-zero when a bank is under --min-per-bank")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Prints per-bank summaries, sentiment distribution, top themes and coverage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		// straight from the store; a stale cache would defeat the check
		q := app.NewQueryService(repo, nil, 0)
		out := cmd.OutOrStdout()

		sums, err := q.BankSummaries(ctx)
		if err != nil {
			return err
		}
		t := newTable(out, "Banks")
		t.AppendHeader(table.Row{"Bank", "App", "Reviews", "Avg", "Min", "Max"})
		for _, s := range sums {
			t.AppendRow(table.Row{s.BankName, s.AppName, s.Reviews, fmt.Sprintf("%.2f", s.AvgRating), s.MinRating, s.MaxRating})
		}
		t.Render()

		dist, err := q.SentimentDistribution(ctx, nil)
		if err != nil {
			return err
		}
		t = newTable(out, "Sentiment")
		t.AppendHeader(table.Row{"Label", "Count", "%", "Degraded"})
		for _, d := range dist {
			t.AppendRow(table.Row{d.Label, d.Count, fmt.Sprintf("%.2f", d.Percentage), d.Degraded})
		}
		t.Render()

		themes, err := q.TopThemes(ctx, reportFlags.topThemes)
		if err != nil {
			return err
		}
		t = newTable(out, "Top themes")
		t.AppendHeader(table.Row{"Theme", "Reviews"})
		for _, th := range themes {
			t.AppendRow(table.Row{th.Theme, th.Count})
		}
		t.Render()

		cov, err := q.Coverage(ctx, reportFlags.minPerBank)
		if err != nil {
			return err
		}
		t = newTable(out, fmt.Sprintf("Coverage (min %d per bank)", reportFlags.minPerBank))
		t.AppendHeader(table.Row{"Bank", "Reviews", "OK"})
		short := 0
		for _, b := range cov.Banks {
			ok := "yes"
			if !b.MeetsMin {
				ok = "NO"
				short++
			}
			t.AppendRow(table.Row{b.BankName, b.Reviews, ok})
		}
		t.AppendFooter(table.Row{"total", cov.Total, fmt.Sprintf("%.1f%% non-neutral", cov.SentimentCoverage*100)})
		t.Render()

		if reportFlags.strict && short > 0 {
			return fmt.Errorf("%d bank(s) under %d reviews", short, reportFlags.minPerBank)
		}
		return nil
	},
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

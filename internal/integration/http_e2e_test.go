//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bank_reviews/internal/adapters/csvsource"
	server "bank_reviews/internal/adapters/http_server"
	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/adapters/scorer"
	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
	"bank_reviews/internal/shared"
	"bank_reviews/internal/storage/sqlstore"
)

// ---------- helpers ----------
const rawCSV = "reviewId,content,score,at,appId\n" +
	"c1,\"Great app, love it\",5,2024-06-01,prod.cbe.birr\n" +
	"c2,\"Terrible, transfer keeps failing\",1,2024-06-02,prod.cbe.birr\n" +
	"c1,duplicate row,3,2024-06-05,prod.cbe.birr\n" +
	"c3,it is ok,,2024-06-03,com.cr2.amolelight\n" +
	"c4,slow and crashes,2,2024-06-03T08:00:00Z,com.combanketh.mobilebanking\n"

func writeCSV(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "reviews.csv")
	if err := os.WriteFile(p, []byte(rawCSV), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func getJSON(t *testing.T, u string, wantStatus int, out any) {
	t.Helper()
	res, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", u, res.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", u, err)
		}
	}
}

// ---------- the test ----------
func TestHTTP_EndToEnd_IngestThenReport(t *testing.T) {
	ctx := context.Background()

	repo, err := sqlstore.Open(ctx, sqlstore.SQLite, "file::memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	cat, err := shared.LoadCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	ing := app.NewIngestionService(app.IngestionDeps{
		Source:  csvsource.New(writeCSV(t), "Google Play"),
		Repo:    repo,
		Cache:   cache,
		Catalog: cat,
		Labeler: app.NewPolarityLabeler(scorer.NewLexicon(), app.LabelerOptions{Workers: 4, Timeout: time.Second}),
		Clean:   app.CleanOptions{Source: "Google Play"},
	})
	rep, err := ing.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Processed != 4 || rep.Degraded != 0 {
		t.Fatalf("unexpected run report: %+v", rep)
	}

	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{Q: app.NewQueryService(repo, cache, time.Minute)})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// banks
	var banks []domain.Bank
	getJSON(t, ts.URL+"/v1/banks", http.StatusOK, &banks)
	if len(banks) != 3 {
		t.Fatalf("want 3 banks, got %+v", banks)
	}

	// per-bank summaries; c3's missing rating is the median of {5,1,2}
	var sums []domain.BankSummary
	getJSON(t, ts.URL+"/v1/reports/banks", http.StatusOK, &sums)
	total := 0
	for _, s := range sums {
		total += s.Reviews
		if s.BankName == "DASHEN" && (s.Reviews != 1 || s.AvgRating != 2) {
			t.Fatalf("unexpected DASHEN summary: %+v", s)
		}
	}
	if total != 4 {
		t.Fatalf("want 4 stored reviews, got %d", total)
	}

	// newest first, one per page
	var page domain.ReviewsPage
	getJSON(t, ts.URL+"/v1/banks/CBE/reviews?limit=1", http.StatusOK, &page)
	if len(page.Items) != 1 || page.Items[0].ReviewID != "c2" || page.NextCursor == nil {
		t.Fatalf("unexpected first page: %+v", page)
	}
	if page.Items[0].SentimentLabel != domain.Negative || page.Items[0].Themes.String() != "Transaction Problems" {
		t.Fatalf("unexpected labels on c2: %+v", page.Items[0])
	}
	var next domain.ReviewsPage
	getJSON(t, ts.URL+"/v1/banks/CBE/reviews?limit=1&cursor="+url.QueryEscape(*page.NextCursor), http.StatusOK, &next)
	if len(next.Items) != 1 || next.Items[0].ReviewID != "c1" || next.NextCursor != nil {
		t.Fatalf("unexpected second page: %+v", next)
	}
	if next.Items[0].SentimentLabel != domain.Positive || next.Items[0].Text != "Great app, love it" {
		t.Fatalf("first occurrence of c1 should win: %+v", next.Items[0])
	}

	var dist []domain.SentimentShare
	getJSON(t, ts.URL+"/v1/reports/sentiment?bank=dashen", http.StatusOK, &dist)
	if len(dist) != 1 || dist[0].Label != domain.Neutral || dist[0].Percentage != 100 {
		t.Fatalf("unexpected DASHEN distribution: %+v", dist)
	}

	var themes []domain.ThemeCount
	getJSON(t, ts.URL+"/v1/reports/themes?limit=10", http.StatusOK, &themes)
	for _, th := range themes {
		if th.Theme == domain.OtherTheme {
			t.Fatalf("Other must not be reported: %+v", themes)
		}
	}
	if len(themes) != 2 {
		t.Fatalf("want 2 themes, got %+v", themes)
	}

	getJSON(t, ts.URL+"/v1/banks/Awash/reviews", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/v1/banks/CBE/reviews?cursor=%21%21", http.StatusBadRequest, nil)

	// a re-run is idempotent and drops the cached reports
	getJSON(t, ts.URL+"/v1/reports/themes?limit=3", http.StatusOK, &themes)
	getJSON(t, ts.URL+"/v1/banks/CBE/reviews?limit=25", http.StatusOK, &page)
	keys := []string{
		"bank_reviews:report:bank_summaries",
		"bank_reviews:report:themes:3",
		"bank_reviews:reviews:1:25:",
	}
	for _, key := range keys {
		if !mr.Exists(key) {
			t.Fatalf("expected %s to be cached after the read (have %v)", key, mr.Keys())
		}
	}
	if _, err := ing.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, key := range keys {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be invalidated by the run", key)
		}
	}
	getJSON(t, ts.URL+"/v1/reports/banks", http.StatusOK, &sums)
	total = 0
	for _, s := range sums {
		total += s.Reviews
	}
	if total != 4 {
		t.Fatalf("re-run duplicated rows: %d", total)
	}
}

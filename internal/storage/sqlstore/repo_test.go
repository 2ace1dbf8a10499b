package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank_reviews/internal/domain"
	"bank_reviews/internal/storage/sqlstore"
)

func newRepo(t *testing.T) *sqlstore.Repo {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlstore.Open(ctx, sqlstore.SQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "migrate must be repeatable")
	return repo
}

var testBanks = []domain.Bank{
	{ID: 1, Name: "CBE", AppName: "CBEBirr Plus", AppID: "prod.cbe.birr"},
	{ID: 2, Name: "BOA", AppName: "BoA Mobile", AppID: "com.boa.boaMobileBanking"},
}

func lr(id string, bank int, rating int, date string, label domain.SentimentLabel, score float64, themes ...string) domain.LabeledReview {
	return domain.LabeledReview{
		ReviewID:       id,
		BankID:         bank,
		Text:           "text of " + id,
		Rating:         rating,
		Date:           date,
		SentimentLabel: label,
		SentimentScore: score,
		Themes:         domain.Themes(themes),
		Source:         "Google Play",
	}
}

func seed(t *testing.T, repo *sqlstore.Repo) []domain.LabeledReview {
	t.Helper()
	ctx := context.Background()
	rs := []domain.LabeledReview{
		lr("r1", 1, 5, "2024-03-01", domain.Positive, 0.9, "User Interface"),
		lr("r2", 1, 1, "2024-03-02", domain.Negative, 0.2, "Login Issues", "App Performance"),
		lr("r3", 1, 3, "2024-03-03", domain.Neutral, 0.5),
		lr("r4", 2, 4, "2024-03-01", domain.Positive, 0.7, "Login Issues"),
	}
	rs[2].ScoringDegraded = true
	require.NoError(t, repo.UpsertBanks(ctx, testBanks))
	require.NoError(t, repo.UpsertReviews(ctx, rs))
	return rs
}

func TestRepo_UpsertIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	rs := seed(t, repo)

	// same batch again, plus an updated label for r3
	rs[2].SentimentLabel = domain.Positive
	rs[2].SentimentScore = 0.8
	rs[2].ScoringDegraded = false
	require.NoError(t, repo.UpsertBanks(ctx, testBanks))
	require.NoError(t, repo.UpsertReviews(ctx, rs))

	var n int
	require.NoError(t, repo.DB().QueryRow("SELECT COUNT(*) FROM reviews").Scan(&n))
	assert.Equal(t, 4, n)
	require.NoError(t, repo.DB().QueryRow("SELECT COUNT(*) FROM banks").Scan(&n))
	assert.Equal(t, 2, n)

	page, err := repo.ListReviews(ctx, domain.ReviewsQuery{BankID: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "r3", page.Items[0].ReviewID)
	assert.Equal(t, domain.Positive, page.Items[0].SentimentLabel)
	assert.False(t, page.Items[0].ScoringDegraded)
}

func TestRepo_ListBanks(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)

	got, err := repo.ListBanks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBanks, got)
}

func TestRepo_BankSummaries(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)
	require.NoError(t, repo.UpsertBanks(context.Background(), []domain.Bank{{ID: 3, Name: "Dashen", AppName: "Dashen Mobile"}}))

	got, err := repo.BankSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BankSummary{
		{BankID: 1, BankName: "CBE", AppName: "CBEBirr Plus", Reviews: 3, AvgRating: 3, MinRating: 1, MaxRating: 5},
		{BankID: 2, BankName: "BOA", AppName: "BoA Mobile", Reviews: 1, AvgRating: 4, MinRating: 4, MaxRating: 4},
		{BankID: 3, BankName: "Dashen", AppName: "Dashen Mobile"},
	}, got)
}

func TestRepo_SentimentDistribution(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)
	ctx := context.Background()

	all, err := repo.SentimentDistribution(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.SentimentShare{
		{Label: domain.Positive, Count: 2, Percentage: 50},
		{Label: domain.Negative, Count: 1, Percentage: 25},
		{Label: domain.Neutral, Count: 1, Percentage: 25, Degraded: 1},
	}, all)

	bank := 2
	one, err := repo.SentimentDistribution(ctx, &bank)
	require.NoError(t, err)
	assert.Equal(t, []domain.SentimentShare{{Label: domain.Positive, Count: 1, Percentage: 100}}, one)
}

func TestRepo_ThemeCountsExplodesSets(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)

	got, err := repo.ThemeCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ThemeCount{
		{Theme: "Login Issues", Count: 2},
		{Theme: "App Performance", Count: 1},
		{Theme: "Other", Count: 1},
		{Theme: "User Interface", Count: 1},
	}, got)
}

func TestRepo_ListReviewsPaging(t *testing.T) {
	repo := newRepo(t)
	seed(t, repo)
	ctx := context.Background()

	p1, err := repo.ListReviews(ctx, domain.ReviewsQuery{BankID: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, p1.Items, 2)
	assert.Equal(t, "r3", p1.Items[0].ReviewID)
	assert.Equal(t, "r2", p1.Items[1].ReviewID)
	assert.Equal(t, "CBE", p1.Items[1].BankName)
	assert.Equal(t, "2024-03-02", p1.Items[1].Date)
	assert.Equal(t, domain.Themes{"Login Issues", "App Performance"}, p1.Items[1].Themes)
	require.NotNil(t, p1.NextCursor)

	p2, err := repo.ListReviews(ctx, domain.ReviewsQuery{BankID: 1, Limit: 2, Cursor: p1.NextCursor})
	require.NoError(t, err)
	require.Len(t, p2.Items, 1)
	assert.Equal(t, "r1", p2.Items[0].ReviewID)
	assert.Nil(t, p2.NextCursor)

	neg := domain.Negative
	p3, err := repo.ListReviews(ctx, domain.ReviewsQuery{BankID: 1, Sentiment: &neg})
	require.NoError(t, err)
	require.Len(t, p3.Items, 1)
	assert.Equal(t, "r2", p3.Items[0].ReviewID)

	bad := "not a cursor!"
	_, err = repo.ListReviews(ctx, domain.ReviewsQuery{BankID: 1, Cursor: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestRepo_BatchIsAtomic(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertBanks(ctx, testBanks))

	rs := []domain.LabeledReview{
		lr("ok", 1, 4, "2024-01-01", domain.Positive, 0.7),
		lr("bad", 1, 9, "2024-01-01", domain.Positive, 0.7), // violates the rating CHECK
	}
	err := repo.UpsertReviews(ctx, rs)
	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr), "want PersistenceError, got %v", err)
	assert.Equal(t, "upsert reviews", perr.Op)

	var n int
	require.NoError(t, repo.DB().QueryRow("SELECT COUNT(*) FROM reviews").Scan(&n))
	assert.Zero(t, n, "nothing from a failed batch may be written")
}

func TestRepo_ForeignKeyEnforced(t *testing.T) {
	repo := newRepo(t)
	err := repo.UpsertReviews(context.Background(), []domain.LabeledReview{
		lr("x", 99, 3, "2024-01-01", domain.Neutral, 0.5),
	})
	var perr *domain.PersistenceError
	assert.True(t, errors.As(err, &perr))
}

func TestRepo_RecordRun(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rep := domain.RunReport{
		RunID:       "run-1",
		StartedAt:   now,
		FinishedAt:  now.Add(time.Minute),
		Status:      domain.RunFailed,
		FailedStage: domain.StageLabel,
		Processed:   120,
		Strategy:    "polarity",
		Err:         "context canceled",
	}
	require.NoError(t, repo.RecordRun(ctx, rep))
	rep.Status = domain.RunOK
	require.NoError(t, repo.RecordRun(ctx, rep), "re-recording a run id updates it")

	var status, stage string
	var processed int
	require.NoError(t, repo.DB().QueryRow(
		"SELECT status, failed_stage, processed FROM ingest_runs WHERE run_id = 'run-1'",
	).Scan(&status, &stage, &processed))
	assert.Equal(t, "ok", status)
	assert.Equal(t, "label", stage)
	assert.Equal(t, 120, processed)
}

func TestOpen_RejectsEmptyDSN(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), sqlstore.MySQL, "")
	var perr *domain.PersistenceError
	assert.True(t, errors.As(err, &perr))
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]sqlstore.Backend{
		"mysql": sqlstore.MySQL, "Postgres": sqlstore.Postgres, " sqlite ": sqlstore.SQLite,
	} {
		got, err := sqlstore.ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := sqlstore.ParseBackend("mongo")
	assert.Error(t, err)
}

func TestSchemaForEveryBackend(t *testing.T) {
	for _, b := range []sqlstore.Backend{sqlstore.MySQL, sqlstore.Postgres, sqlstore.SQLite} {
		ddl, err := sqlstore.Schema(b)
		require.NoError(t, err, b)
		for _, table := range []string{"banks", "reviews", "ingest_runs"} {
			assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS "+table, b)
		}
		// large custom catalogs produce long joined theme lists
		assert.Regexp(t, `themes\s+TEXT\s+NOT NULL`, ddl, b)
	}
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"bank_reviews/internal/domain"
)

// Repo implements domain.ReviewRepository on top of database/sql.
type Repo struct {
	db *sql.DB
	b  Backend
}

func New(db *sql.DB, b Backend) *Repo { return &Repo{db: db, b: b} }

// Open connects to the given backend and pings it. A failure here is fatal
// for the caller: there is no fallback store.
func Open(ctx context.Context, b Backend, dsn string) (*Repo, error) {
	if dsn == "" {
		return nil, &domain.PersistenceError{Op: "open", Err: errors.New("empty DSN")}
	}
	db, err := sql.Open(b.driver(), dsn)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}
	if b == SQLite {
		// one connection keeps :memory: databases and pragmas alive
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.PersistenceError{Op: "ping", Err: err}
	}
	if b == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, &domain.PersistenceError{Op: "pragma", Err: err}
		}
	}
	return New(db, b), nil
}

func (r *Repo) DB() *sql.DB { return r.db }

func (r *Repo) Backend() Backend { return r.b }

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) UpsertBanks(ctx context.Context, bs []domain.Bank) error {
	rows := make([][]any, 0, len(bs))
	for _, b := range bs {
		rows = append(rows, []any{b.ID, b.Name, b.AppName, b.AppID})
	}
	return r.upsertAll(ctx, "upsert banks", "banks", bankKey, bankCols, rows, false)
}

func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.LabeledReview) error {
	rows := make([][]any, 0, len(rs))
	for _, rv := range rs {
		rows = append(rows, []any{
			rv.ReviewID,
			rv.BankID,
			rv.Text,
			rv.Rating,
			rv.Date,
			string(rv.SentimentLabel),
			rv.SentimentScore,
			rv.ScoringDegraded,
			rv.Themes.String(),
			rv.Source,
		})
	}
	return r.upsertAll(ctx, "upsert reviews", "reviews", reviewKey, reviewCols, rows, true)
}

func (r *Repo) RecordRun(ctx context.Context, rep domain.RunReport) error {
	var errText any
	if rep.Err != "" {
		errText = rep.Err
	}
	row := []any{
		rep.RunID,
		rep.StartedAt.UTC(),
		rep.FinishedAt.UTC(),
		string(rep.Status),
		string(rep.FailedStage),
		rep.Processed,
		rep.Strategy,
		rep.Degraded,
		rep.Skipped,
		errText,
	}
	return r.upsertAll(ctx, "record run", "ingest_runs", runKey, runCols, [][]any{row}, false)
}

// upsertAll writes rows in multi-VALUES chunks inside one transaction, so a
// failed batch leaves nothing half-written.
func (r *Repo) upsertAll(ctx context.Context, op, table, key string, cols []string, rows [][]any, touch bool) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	tail := r.b.upsert(key, cols[1:], touch)

	for start := 0; start < len(rows); start += upsertChunk {
		end := min(start+upsertChunk, len(rows))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(cols))
		for _, row := range rows[start:end] {
			values = append(values, tuple)
			args = append(args, row...)
		}
		q := r.b.bind(prefix + strings.Join(values, ",") + tail)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return &domain.PersistenceError{Op: op, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (r *Repo) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	rows, err := r.db.QueryContext(ctx, listBanksSQL)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list banks", Err: err}
	}
	defer rows.Close()

	var out []domain.Bank
	for rows.Next() {
		var b domain.Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.AppName, &b.AppID); err != nil {
			return nil, &domain.PersistenceError{Op: "list banks", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list banks", Err: err}
	}
	return out, nil
}

func (r *Repo) BankSummaries(ctx context.Context) ([]domain.BankSummary, error) {
	rows, err := r.db.QueryContext(ctx, bankSummariesSQL)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "bank summaries", Err: err}
	}
	defer rows.Close()

	var out []domain.BankSummary
	for rows.Next() {
		var s domain.BankSummary
		if err := rows.Scan(&s.BankID, &s.BankName, &s.AppName, &s.Reviews, &s.AvgRating, &s.MinRating, &s.MaxRating); err != nil {
			return nil, &domain.PersistenceError{Op: "bank summaries", Err: err}
		}
		s.AvgRating = round2(s.AvgRating)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "bank summaries", Err: err}
	}
	return out, nil
}

// SentimentDistribution counts labels, optionally for one bank. Percentages
// are of the filtered total and rounded to two decimals.
func (r *Repo) SentimentDistribution(ctx context.Context, bankID *int) ([]domain.SentimentShare, error) {
	q := fmt.Sprintf(sentimentSelect, r.b.degradedSum())
	var args []any
	if bankID != nil {
		q += "\nWHERE r.bank_id = ?"
		args = append(args, *bankID)
	}
	q += "\nGROUP BY r.sentiment_label"

	rows, err := r.db.QueryContext(ctx, r.b.bind(q), args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "sentiment distribution", Err: err}
	}
	defer rows.Close()

	var out []domain.SentimentShare
	total := 0
	for rows.Next() {
		var s domain.SentimentShare
		var label string
		if err := rows.Scan(&label, &s.Count, &s.Degraded); err != nil {
			return nil, &domain.PersistenceError{Op: "sentiment distribution", Err: err}
		}
		s.Label = domain.SentimentLabel(label)
		total += s.Count
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "sentiment distribution", Err: err}
	}
	for i := range out {
		out[i].Percentage = round2(float64(out[i].Count) * 100 / float64(total))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// ThemeCounts explodes the stored theme sets and counts each theme once per
// review, Other included.
func (r *Repo) ThemeCounts(ctx context.Context) ([]domain.ThemeCount, error) {
	rows, err := r.db.QueryContext(ctx, themeCountsSQL)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "theme counts", Err: err}
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var set string
		var n int
		if err := rows.Scan(&set, &n); err != nil {
			return nil, &domain.PersistenceError{Op: "theme counts", Err: err}
		}
		for _, t := range domain.ParseThemes(set) {
			counts[t] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "theme counts", Err: err}
	}
	out := make([]domain.ThemeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, domain.ThemeCount{Theme: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Theme < out[j].Theme
	})
	return out, nil
}

// ListReviews pages a bank's reviews newest first. The cursor is opaque and
// points after the last row of the previous page.
func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	stmt := fmt.Sprintf(listReviewsSelect, r.b.date("r.review_date"))
	args := []any{q.BankID}
	if q.Sentiment != nil {
		stmt += "\n  AND r.sentiment_label = ?"
		args = append(args, string(*q.Sentiment))
	}
	if q.Cursor != nil && *q.Cursor != "" {
		date, id, err := decodeCursor(*q.Cursor)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		stmt += "\n  AND (r.review_date < ? OR (r.review_date = ? AND r.review_id < ?))"
		args = append(args, date, date, id)
	}
	stmt += "\nORDER BY r.review_date DESC, r.review_id DESC\nLIMIT ?"
	args = append(args, q.Limit+1)

	rows, err := r.db.QueryContext(ctx, r.b.bind(stmt), args...)
	if err != nil {
		return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
	}
	defer rows.Close()

	var out []domain.LabeledReview
	for rows.Next() {
		var rv domain.LabeledReview
		var label, themes string
		if err := rows.Scan(
			&rv.ReviewID,
			&rv.BankID,
			&rv.BankName,
			&rv.AppName,
			&rv.Text,
			&rv.Rating,
			&rv.Date,
			&label,
			&rv.SentimentScore,
			&rv.ScoringDegraded,
			&themes,
			&rv.Source,
		); err != nil {
			return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
		}
		rv.SentimentLabel = domain.SentimentLabel(label)
		rv.Themes = domain.ParseThemes(themes)
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, &domain.PersistenceError{Op: "list reviews", Err: err}
	}

	page := domain.ReviewsPage{Items: out}
	if len(out) > q.Limit {
		page.Items = out[:q.Limit]
		last := page.Items[q.Limit-1]
		c := encodeCursor(last.Date, last.ReviewID)
		page.NextCursor = &c
	}
	return page, nil
}

func encodeCursor(date, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(date + "|" + id))
}

func decodeCursor(c string) (date, id string, err error) {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return "", "", domain.ErrInvalidCursor
	}
	date, id, ok := strings.Cut(string(b), "|")
	if !ok || date == "" || id == "" {
		return "", "", domain.ErrInvalidCursor
	}
	return date, id, nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

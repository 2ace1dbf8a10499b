package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"bank_reviews/internal/domain"
	"bank_reviews/internal/shared"
)

// ---- fakes ----

type fakeRepo struct {
	mu        sync.Mutex
	banks     []domain.Bank
	reviews   []domain.LabeledReview
	runs      []domain.RunReport
	sums      []domain.BankSummary
	themes    []domain.ThemeCount
	page      domain.ReviewsPage
	upsertErr error
	reads     int
}

func (f *fakeRepo) UpsertBanks(_ context.Context, bs []domain.Bank) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banks = append([]domain.Bank(nil), bs...)
	return nil
}

func (f *fakeRepo) UpsertReviews(_ context.Context, rs []domain.LabeledReview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.reviews = append(f.reviews, rs...)
	return nil
}

func (f *fakeRepo) RecordRun(_ context.Context, r domain.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeRepo) ListBanks(context.Context) ([]domain.Bank, error) {
	f.reads++
	return f.banks, nil
}

func (f *fakeRepo) BankSummaries(context.Context) ([]domain.BankSummary, error) {
	f.reads++
	return f.sums, nil
}

func (f *fakeRepo) SentimentDistribution(context.Context, *int) ([]domain.SentimentShare, error) {
	f.reads++
	return nil, nil
}

func (f *fakeRepo) ThemeCounts(context.Context) ([]domain.ThemeCount, error) {
	f.reads++
	return f.themes, nil
}

func (f *fakeRepo) ListReviews(context.Context, domain.ReviewsQuery) (domain.ReviewsPage, error) {
	f.reads++
	return f.page, nil
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store    map[string][]byte
	dels     []string
	prefixes []string
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

func (c *fakeCache) DelPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

type fakeSource struct {
	recs []map[string]any
	err  error
}

func (s fakeSource) Fetch(context.Context, []domain.Bank) ([]map[string]any, error) {
	// hand out fresh maps so a run cannot leak edits into the next one
	out := make([]map[string]any, len(s.recs))
	for i, r := range s.recs {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v
		}
		out[i] = m
	}
	return out, s.err
}

type polarityFunc func(ctx context.Context, text string) (float64, error)

func (f polarityFunc) Polarity(ctx context.Context, text string) (float64, error) { return f(ctx, text) }

type classifyFunc func(ctx context.Context, text string) (string, float64, error)

func (f classifyFunc) Classify(ctx context.Context, text string) (string, float64, error) {
	return f(ctx, text)
}

type fakePublisher struct {
	got []domain.LabeledReview
	err error
}

func (p *fakePublisher) PublishReviews(_ context.Context, rs []domain.LabeledReview) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, rs...)
	return nil
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := shared.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func fptr(f float64) *float64 { return &f }

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bank_reviews/internal/domain"
)

const defaultReviewLimit = 50

// Every cached read model lives under one of these prefixes.
const (
	reportPrefix  = "report:"
	reviewsPrefix = "reviews:"
)

func keyBanks() string         { return reportPrefix + "banks" }
func keyBankSummaries() string { return reportPrefix + "bank_summaries" }
func keyThemes(limit int) string {
	return fmt.Sprintf("%sthemes:%d", reportPrefix, limit)
}
func keySentiment(bankID *int) string {
	if bankID == nil {
		return reportPrefix + "sentiment:all"
	}
	return fmt.Sprintf("%ssentiment:%d", reportPrefix, *bankID)
}
func keyReviews(bankID, limit int, label domain.SentimentLabel) string {
	return fmt.Sprintf("%s%d:%d:%s", reviewsPrefix, bankID, limit, label)
}

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// cached serves key from the cache, or calls load and caches the result.
func cached[T any](ctx context.Context, s *QueryService, key string, load func() (T, error)) (T, error) {
	var out T
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); ok && err == nil {
			return out, nil
		}
		out = *new(T)
	}
	out, err := load()
	if err != nil {
		return out, err
	}
	// optional size guard
	if s.cache != nil {
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
		}
	}
	return out, nil
}

func (s *QueryService) Banks(ctx context.Context) ([]domain.Bank, error) {
	return cached(ctx, s, keyBanks(), func() ([]domain.Bank, error) {
		return s.repo.ListBanks(ctx)
	})
}

// ResolveBank finds a stored bank by name, app name, app id or numeric id.
func (s *QueryService) ResolveBank(ctx context.Context, ref string) (domain.Bank, error) {
	banks, err := s.Banks(ctx)
	if err != nil {
		return domain.Bank{}, err
	}
	ref = strings.TrimSpace(ref)
	id, idErr := strconv.Atoi(ref)
	for _, b := range banks {
		if idErr == nil && b.ID == id {
			return b, nil
		}
		for _, k := range []string{b.Name, b.AppName, b.AppID} {
			if k != "" && strings.EqualFold(k, ref) {
				return b, nil
			}
		}
	}
	return domain.Bank{}, domain.ErrNotFound
}

func (s *QueryService) BankSummaries(ctx context.Context) ([]domain.BankSummary, error) {
	return cached(ctx, s, keyBankSummaries(), func() ([]domain.BankSummary, error) {
		return s.repo.BankSummaries(ctx)
	})
}

func (s *QueryService) SentimentDistribution(ctx context.Context, bankID *int) ([]domain.SentimentShare, error) {
	return cached(ctx, s, keySentiment(bankID), func() ([]domain.SentimentShare, error) {
		return s.repo.SentimentDistribution(ctx, bankID)
	})
}

// TopThemes counts individual themes across reviews, excluding Other.
func (s *QueryService) TopThemes(ctx context.Context, limit int) ([]domain.ThemeCount, error) {
	if limit <= 0 {
		limit = 5
	}
	return cached(ctx, s, keyThemes(limit), func() ([]domain.ThemeCount, error) {
		all, err := s.repo.ThemeCounts(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]domain.ThemeCount, 0, len(all))
		for _, tc := range all {
			if tc.Theme != domain.OtherTheme {
				out = append(out, tc)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Theme < out[j].Theme
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	})
}

func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultReviewLimit
	}
	var label domain.SentimentLabel
	if q.Sentiment != nil {
		label = *q.Sentiment
	}
	// only the first page is cached
	if q.Cursor != nil {
		return s.repo.ListReviews(ctx, q)
	}
	return cached(ctx, s, keyReviews(q.BankID, q.Limit, label), func() (domain.ReviewsPage, error) {
		rp, err := s.repo.ListReviews(ctx, q)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		// copy slice to avoid aliasing the repo's backing array
		return deepCopyReviewsPage(rp), nil
	})
}

// Coverage is the per-bank volume check plus the share of reviews with a
// non-neutral sentiment.
type Coverage struct {
	Banks             []BankCoverage `json:"banks"`
	Total             int            `json:"total"`
	SentimentCoverage float64        `json:"sentiment_coverage"`
	Degraded          int            `json:"degraded"`
}

type BankCoverage struct {
	BankName string `json:"bank_name"`
	Reviews  int    `json:"reviews"`
	MeetsMin bool   `json:"meets_min"`
}

func (s *QueryService) Coverage(ctx context.Context, minPerBank int) (Coverage, error) {
	sums, err := s.BankSummaries(ctx)
	if err != nil {
		return Coverage{}, err
	}
	dist, err := s.SentimentDistribution(ctx, nil)
	if err != nil {
		return Coverage{}, err
	}
	var out Coverage
	for _, b := range sums {
		out.Total += b.Reviews
		out.Banks = append(out.Banks, BankCoverage{BankName: b.BankName, Reviews: b.Reviews, MeetsMin: b.Reviews >= minPerBank})
	}
	nonNeutral, all := 0, 0
	for _, d := range dist {
		all += d.Count
		out.Degraded += d.Degraded
		if d.Label != domain.Neutral {
			nonNeutral += d.Count
		}
	}
	if all > 0 {
		out.SentimentCoverage = float64(nonNeutral) / float64(all)
	}
	return out, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.LabeledReview, n)
		copy(out.Items, in.Items)
		for i := range out.Items {
			out.Items[i].Themes = append(domain.Themes(nil), in.Items[i].Themes...)
		}
	}
	return out
}

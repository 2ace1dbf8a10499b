package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

// Dead zone of the polarity rule: |p| <= 0.1 is neutral.
const polarityThreshold = 0.1

var (
	ErrPolarityNaN  = errors.New("polarity is NaN")
	ErrUnknownLabel = errors.New("unknown classifier label")
)

// BucketPolarity maps a [-1,1] polarity onto a label and a [0,1] score.
// The label is derived from the polarity alone, never from the scorer.
func BucketPolarity(p float64) (domain.Sentiment, error) {
	if math.IsNaN(p) {
		return domain.Sentiment{}, ErrPolarityNaN
	}
	p = math.Max(-1, math.Min(1, p))
	switch {
	case p > polarityThreshold:
		return domain.Sentiment{Label: domain.Positive, Score: 0.5 + p/2}, nil
	case p < -polarityThreshold:
		return domain.Sentiment{Label: domain.Negative, Score: 0.5 + p/2}, nil
	default:
		return domain.Sentiment{Label: domain.Neutral, Score: 0.5}, nil
	}
}

// BucketClassifier maps a classifier's own (label, confidence) onto the same
// [0,1] scale: positive above 0.5, negative below, neutral at 0.5.
func BucketClassifier(label string, confidence float64) (domain.Sentiment, error) {
	l, ok := domain.ParseSentimentLabel(label)
	if !ok {
		return domain.Sentiment{}, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if math.IsNaN(confidence) {
		return domain.Sentiment{}, fmt.Errorf("confidence is NaN")
	}
	c := math.Max(0, math.Min(1, confidence))
	switch l {
	case domain.Positive:
		return domain.Sentiment{Label: l, Score: 0.5 + c/2}, nil
	case domain.Negative:
		return domain.Sentiment{Label: l, Score: 0.5 - c/2}, nil
	default:
		return domain.Sentiment{Label: domain.Neutral, Score: 0.5}, nil
	}
}

// NeutralFallback is what a review gets when its scorer call fails.
func NeutralFallback() domain.Sentiment {
	return domain.Sentiment{Label: domain.Neutral, Score: 0.5, Degraded: true}
}

const (
	StrategyPolarity   = "polarity"
	StrategyClassifier = "classifier"
)

type LabelerOptions struct {
	Workers int
	Timeout time.Duration
}

// SentimentLabeler scores reviews through one declared scorer contract.
type SentimentLabeler struct {
	strategy string
	score    func(ctx context.Context, text string) (domain.Sentiment, error)
	workers  int
	timeout  time.Duration
}

func NewPolarityLabeler(s domain.PolarityScorer, opts LabelerOptions) *SentimentLabeler {
	return newLabeler(StrategyPolarity, func(ctx context.Context, text string) (domain.Sentiment, error) {
		p, err := s.Polarity(ctx, text)
		if err != nil {
			return domain.Sentiment{}, err
		}
		return BucketPolarity(p)
	}, opts)
}

func NewClassifierLabeler(s domain.ClassifierScorer, opts LabelerOptions) *SentimentLabeler {
	return newLabeler(StrategyClassifier, func(ctx context.Context, text string) (domain.Sentiment, error) {
		label, conf, err := s.Classify(ctx, text)
		if err != nil {
			return domain.Sentiment{}, err
		}
		return BucketClassifier(label, conf)
	}, opts)
}

func newLabeler(strategy string, fn func(context.Context, string) (domain.Sentiment, error), opts LabelerOptions) *SentimentLabeler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &SentimentLabeler{strategy: strategy, score: fn, workers: opts.Workers, timeout: opts.Timeout}
}

func (l *SentimentLabeler) Strategy() string { return l.strategy }

// LabelAll scores every review. Scorer failures and timeouts are recovered per
// record; only cancellation of ctx fails the call. Results come back in input
// order regardless of completion order.
func (l *SentimentLabeler) LabelAll(ctx context.Context, rs []domain.Review) ([]domain.SentimentResult, error) {
	out := make([]domain.SentimentResult, len(rs))
	sem := semaphore.NewWeighted(int64(l.workers))
	var wg sync.WaitGroup

	for i, r := range rs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, r domain.Review) {
			defer wg.Done()
			defer sem.Release(1)
			out[i] = domain.SentimentResult{ReviewID: r.ReviewID, Sentiment: l.labelOne(ctx, r)}
		}(i, r)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *SentimentLabeler) labelOne(ctx context.Context, r domain.Review) domain.Sentiment {
	cctx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	s, err := l.scoreWithin(cctx, r.Text)
	if err != nil {
		serr := &domain.ScoringError{ReviewID: r.ReviewID, Err: err}
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		observability.ObserveScoring(l.strategy, outcome, time.Since(start))
		if ctx.Err() == nil {
			log.Warn().Err(serr).Str("strategy", l.strategy).Msg("scorer failed; falling back to neutral")
		}
		return NeutralFallback()
	}
	observability.ObserveScoring(l.strategy, "ok", time.Since(start))
	return s
}

type scored struct {
	s   domain.Sentiment
	err error
}

// scoreWithin returns when the scorer does or when ctx ends, whichever is
// first. A scorer that ignores ctx finishes in the background and its result
// is dropped.
func (l *SentimentLabeler) scoreWithin(ctx context.Context, text string) (domain.Sentiment, error) {
	done := make(chan scored, 1)
	go func() {
		s, err := l.score(ctx, text)
		done <- scored{s: s, err: err}
	}()
	select {
	case res := <-done:
		return res.s, res.err
	case <-ctx.Done():
		return domain.Sentiment{}, ctx.Err()
	}
}

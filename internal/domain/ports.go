package domain

import (
	"context"
	"time"
)

type ReviewRepository interface {
	// Write paths
	UpsertBanks(ctx context.Context, bs []Bank) error
	UpsertReviews(ctx context.Context, rs []LabeledReview) error
	RecordRun(ctx context.Context, r RunReport) error

	// Read paths
	ListBanks(ctx context.Context) ([]Bank, error)
	BankSummaries(ctx context.Context) ([]BankSummary, error)
	SentimentDistribution(ctx context.Context, bankID *int) ([]SentimentShare, error)
	ThemeCounts(ctx context.Context) ([]ThemeCount, error)
	ListReviews(ctx context.Context, q ReviewsQuery) (ReviewsPage, error)
}

// RawRecordSource returns untrusted review payloads for the given banks.
type RawRecordSource interface {
	Fetch(ctx context.Context, banks []Bank) ([]map[string]any, error)
}

// PolarityScorer returns a sentiment polarity in [-1,1].
type PolarityScorer interface {
	Polarity(ctx context.Context, text string) (float64, error)
}

// ClassifierScorer returns its own label and a confidence in [0,1].
type ClassifierScorer interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// DelPrefix drops every key starting with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

type Publisher interface {
	PublishReviews(ctx context.Context, rs []LabeledReview) error
}

// Stage names a pipeline step for reporting and metrics.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageClean    Stage = "clean"
	StageTag      Stage = "tag"
	StageLabel    Stage = "label"
	StageAssemble Stage = "assemble"
	StagePersist  Stage = "persist"
	StagePublish  Stage = "publish"
)

type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "failed"
)

// RunReport describes one ingestion run, successful or not.
type RunReport struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      RunStatus
	FailedStage Stage
	Processed   int
	Counts      map[Stage]int
	Strategy    string
	Degraded    int
	Skipped     int
	Err         string
}

// Read models & queries
type BankSummary struct {
	BankID    int     `json:"bank_id"`
	BankName  string  `json:"bank_name"`
	AppName   string  `json:"app_name"`
	Reviews   int     `json:"reviews"`
	AvgRating float64 `json:"avg_rating"`
	MinRating int     `json:"min_rating"`
	MaxRating int     `json:"max_rating"`
}

type SentimentShare struct {
	Label      SentimentLabel `json:"sentiment_label"`
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
	Degraded   int            `json:"degraded"`
}

type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

type ReviewsQuery struct {
	BankID    int
	Sentiment *SentimentLabel
	Limit     int
	Cursor    *string
}

type ReviewsPage struct {
	Items      []LabeledReview `json:"items"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

package domain

import "strings"

// RawRecord is a scraped review after alias mapping but before validation.
// Nothing in it is trusted yet; the cleaner decides what survives.
type RawRecord struct {
	ReviewID  string
	Bank      string
	Text      string
	Rating    *float64
	RatingRaw string // set when a rating was present but not numeric
	Date      string
	Source    string
}

// Review is a record that passed the cleaner.
type Review struct {
	ReviewID string
	BankID   int
	Text     string
	Rating   int
	Date     string // YYYY-MM-DD
	Source   string
}

type SentimentLabel string

const (
	Positive SentimentLabel = "POSITIVE"
	Negative SentimentLabel = "NEGATIVE"
	Neutral  SentimentLabel = "NEUTRAL"
)

func ParseSentimentLabel(s string) (SentimentLabel, bool) {
	switch SentimentLabel(strings.ToUpper(strings.TrimSpace(s))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Neutral:
		return Neutral, true
	}
	return "", false
}

type Sentiment struct {
	Label    SentimentLabel
	Score    float64 // [0,1]
	Degraded bool    // scorer failed; Label/Score are the NEUTRAL fallback
}

// OtherTheme is what a review gets when no keyword matches.
const OtherTheme = "Other"

// themeSep is the storage delimiter for Themes.
const themeSep = ", "

// Themes is an ordered set of theme names. It is never empty once tagged.
type Themes []string

func (t Themes) String() string {
	if len(t) == 0 {
		return OtherTheme
	}
	return strings.Join(t, themeSep)
}

// ParseThemes splits a stored themes column back into the set.
func ParseThemes(s string) Themes {
	var out Themes
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return Themes{OtherTheme}
	}
	return out
}

type ThemeResult struct {
	ReviewID string
	Themes   Themes
}

type SentimentResult struct {
	ReviewID  string
	Sentiment Sentiment
}

// LabeledReview is one row of the denormalized dataset.
type LabeledReview struct {
	ReviewID        string         `json:"review_id"`
	BankID          int            `json:"bank_id"`
	BankName        string         `json:"bank_name"`
	AppName         string         `json:"app_name"`
	Text            string         `json:"review_text"`
	Rating          int            `json:"rating"`
	Date            string         `json:"date"`
	SentimentLabel  SentimentLabel `json:"sentiment_label"`
	SentimentScore  float64        `json:"sentiment_score"`
	ScoringDegraded bool           `json:"scoring_degraded"`
	Themes          Themes         `json:"themes"`
	Source          string         `json:"source"`
}

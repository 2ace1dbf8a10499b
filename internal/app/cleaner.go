package app

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"

	"bank_reviews/internal/domain"
)

var (
	ErrNoRatings     = errors.New("rating column has no values to impute from")
	ErrBadDate       = errors.New("unparseable date")
	ErrRatingRange   = errors.New("rating outside 1..5")
	ErrBadRating     = errors.New("rating is not a number")
	ErrUnknownBank   = errors.New("unknown bank")
	ErrMissingSource = errors.New("source tag is required")
)

// Layouts cast does not know about.
var extraDateLayouts = []string{"01/02/2006", "2006/01/02", "02.01.2006"}

const dateLayout = "2006-01-02"

type CleanOptions struct {
	// SkipInvalid drops records with a bad date, rating or bank instead of
	// aborting. Median imputation failure always aborts.
	SkipInvalid bool
	// Source is stamped on every review when the raw record has none.
	Source string
}

type CleanStats struct {
	Input      int
	Duplicates int
	Incomplete int
	Imputed    int
	Skipped    int
	Output     int
}

type Cleaner struct {
	catalog *domain.Catalog
	opts    CleanOptions
}

func NewCleaner(c *domain.Catalog, opts CleanOptions) *Cleaner {
	return &Cleaner{catalog: c, opts: opts}
}

// Clean validates raw records into reviews. Order of steps matters:
// dedup, drop empty text, impute ratings from the survivors' median, parse dates.
// The input slice is not modified.
func (c *Cleaner) Clean(in []domain.RawRecord) ([]domain.Review, CleanStats, error) {
	st := CleanStats{Input: len(in)}
	if c.opts.Source == "" {
		return nil, st, &domain.DataError{Field: "source", Err: ErrMissingSource}
	}

	// 1) first occurrence of a review_id wins
	seen := make(map[string]struct{}, len(in))
	kept := make([]domain.RawRecord, 0, len(in))
	for _, r := range in {
		id := strings.TrimSpace(r.ReviewID)
		if id == "" {
			st.Incomplete++
			continue
		}
		if _, dup := seen[id]; dup {
			st.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		r.ReviewID = id
		kept = append(kept, r)
	}

	// 2) empty text
	survivors := kept[:0]
	for _, r := range kept {
		r.Text = norm.NFC.String(strings.TrimSpace(r.Text))
		if r.Text == "" {
			st.Incomplete++
			continue
		}
		survivors = append(survivors, r)
	}

	// 3) median over every present rating, computed once before imputation
	var fill int
	if missing := countMissing(survivors); missing > 0 {
		med, ok := medianRating(survivors)
		if !ok {
			return nil, st, &domain.DataError{Field: "rating", Err: ErrNoRatings}
		}
		fill = int(math.Round(med))
		log.Info().Int("missing", missing).Int("median", fill).Msg("imputing missing ratings")
	}

	out := make([]domain.Review, 0, len(survivors))
	for _, r := range survivors {
		rv, imputed, err := c.validate(r, fill)
		if err != nil {
			if !c.opts.SkipInvalid {
				return nil, st, err
			}
			st.Skipped++
			log.Warn().Err(err).Str("review_id", r.ReviewID).Msg("skipping invalid record")
			continue
		}
		if imputed {
			st.Imputed++
		}
		out = append(out, rv)
	}
	st.Output = len(out)
	return out, st, nil
}

func (c *Cleaner) validate(r domain.RawRecord, fill int) (domain.Review, bool, error) {
	bank, ok := c.catalog.Resolve(r.Bank)
	if !ok {
		return domain.Review{}, false, &domain.DataError{ReviewID: r.ReviewID, Field: "bank", Err: fmt.Errorf("%w: %q", ErrUnknownBank, r.Bank)}
	}

	if r.Rating == nil && r.RatingRaw != "" {
		return domain.Review{}, false, &domain.DataError{ReviewID: r.ReviewID, Field: "rating", Err: fmt.Errorf("%w: %q", ErrBadRating, r.RatingRaw)}
	}
	rating, imputed := fill, true
	if r.Rating != nil {
		imputed = false
		f := *r.Rating
		if math.IsNaN(f) || f < 1 || f > 5 {
			return domain.Review{}, false, &domain.DataError{ReviewID: r.ReviewID, Field: "rating", Err: fmt.Errorf("%w: %v", ErrRatingRange, f)}
		}
		rating = int(math.Round(f))
	}

	date, err := NormalizeDate(r.Date)
	if err != nil {
		return domain.Review{}, false, &domain.DataError{ReviewID: r.ReviewID, Field: "date", Err: err}
	}

	src := strings.TrimSpace(r.Source)
	if src == "" {
		src = c.opts.Source
	}
	return domain.Review{
		ReviewID: r.ReviewID,
		BankID:   bank.ID,
		Text:     r.Text,
		Rating:   rating,
		Date:     date,
		Source:   src,
	}, imputed, nil
}

// NormalizeDate parses a raw date into YYYY-MM-DD. The calendar date is taken
// in the timestamp's own zone.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrBadDate)
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		for _, l := range extraDateLayouts {
			if t, err = time.Parse(l, raw); err == nil {
				break
			}
		}
	}
	// cast accepts clock-only layouts (time.Kitchen) which yield year 0.
	if err != nil || t.Year() < 1900 {
		return "", fmt.Errorf("%w: %q", ErrBadDate, raw)
	}
	return t.Format(dateLayout), nil
}

func countMissing(rs []domain.RawRecord) int {
	n := 0
	for _, r := range rs {
		if r.Rating == nil && r.RatingRaw == "" {
			n++
		}
	}
	return n
}

func medianRating(rs []domain.RawRecord) (float64, bool) {
	vals := make([]float64, 0, len(rs))
	for _, r := range rs {
		if r.Rating != nil && !math.IsNaN(*r.Rating) {
			vals = append(vals, *r.Rating)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

package app

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"bank_reviews/internal/domain"
)

/********** alias registry (single source of truth) **********/

// Scraper payloads and CSV exports name the same fields differently.
var reviewAliases = map[string][]string{
	"review_id": {"review_id", "reviewId", "id"},
	"text":      {"review_text", "content", "text", "review", "body"},
	"rating":    {"rating", "score", "stars"},
	"date":      {"date", "at", "review_date", "created_at", "timestamp"},
	"bank":      {"bank", "bank_name", "app_id", "appId", "app_name"},
	"source":    {"source", "platform"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// firstAlias returns the first non-nil, non-blank value for a named alias set.
func firstAlias(m map[string]any, key string) any {
	for _, p := range reviewAliases[key] {
		v := lookupAny(m, p)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func aliasString(m map[string]any, key string) string {
	v := firstAlias(m, key)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// aliasFloat accepts float64/int/"4"/"4,0". A present but unparseable value
// comes back as its raw text with a nil number.
func aliasFloat(m map[string]any, key string) (*float64, string) {
	v := firstAlias(m, key)
	if v == nil {
		return nil, ""
	}
	in := v
	if s, ok := v.(string); ok {
		v = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, strings.TrimSpace(cast.ToString(in))
	}
	return &f, ""
}

// aliasDate keeps strings as-is for the cleaner to parse; numeric values are
// unix seconds and are rendered as RFC3339.
func aliasDate(m map[string]any, key string) string {
	switch v := firstAlias(m, key).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return cast.ToString(v)
		}
		return t.UTC().Format(time.RFC3339)
	}
}

/********** raw record mapper **********/

func mapRawRecords(in []map[string]any) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(in))
	for _, r := range in {
		rating, ratingRaw := aliasFloat(r, "rating")
		out = append(out, domain.RawRecord{
			ReviewID:  aliasString(r, "review_id"),
			Bank:      aliasString(r, "bank"),
			Text:      aliasString(r, "text"),
			Rating:    rating,
			RatingRaw: ratingRaw,
			Date:      aliasDate(r, "date"),
			Source:    aliasString(r, "source"),
		})
	}
	return out
}

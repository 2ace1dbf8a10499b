package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"bank_reviews/internal/adapters/observability"
)

// HTTP calls a remote sentiment model. One endpoint serves either contract:
// {"polarity": p} for Polarity, {"label": l, "score": c} for Classify. A bare
// list of label/score objects (typical of model-serving pipelines) is also
// accepted; the highest score wins.
type HTTP struct {
	c   *resty.Client
	url string
	rl  *rate.Limiter
}

type textRequest struct {
	Text string `json:"text"`
}

type polarityResponse struct {
	Polarity *float64 `json:"polarity"`
}

type labelResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func NewHTTP(url, apiKey string, timeout time.Duration, rps int) (*HTTP, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("scorer URL is required")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if rps <= 0 {
		rps = 20
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "bank-reviews/1.0").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	c.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		observability.ObserveExternal("scorer", r.StatusCode(), r.Time())
		return nil
	})
	return &HTTP{c: c, url: url, rl: rate.NewLimiter(rate.Limit(rps), rps)}, nil
}

func (s *HTTP) post(ctx context.Context, text string) ([]byte, error) {
	if err := s.rl.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := s.c.R().
		SetContext(ctx).
		SetBody(textRequest{Text: text}).
		Post(s.url)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("scorer status %d: %s", res.StatusCode(), strings.TrimSpace(truncate(res.String(), 256)))
	}
	return res.Body(), nil
}

func (s *HTTP) Polarity(ctx context.Context, text string) (float64, error) {
	body, err := s.post(ctx, text)
	if err != nil {
		return 0, err
	}
	var out polarityResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode polarity: %w", err)
	}
	if out.Polarity == nil {
		return 0, errors.New("decode polarity: missing polarity field")
	}
	return *out.Polarity, nil
}

func (s *HTTP) Classify(ctx context.Context, text string) (string, float64, error) {
	body, err := s.post(ctx, text)
	if err != nil {
		return "", 0, err
	}
	best, err := decodeLabel(body)
	if err != nil {
		return "", 0, err
	}
	return best.Label, best.Score, nil
}

// decodeLabel accepts an object, a list of objects, or a list of lists.
func decodeLabel(body []byte) (labelResponse, error) {
	var one labelResponse
	if err := json.Unmarshal(body, &one); err == nil && one.Label != "" {
		return one, nil
	}
	var list []labelResponse
	if err := json.Unmarshal(body, &list); err != nil {
		var nested [][]labelResponse
		if err := json.Unmarshal(body, &nested); err != nil || len(nested) == 0 {
			return labelResponse{}, errors.New("decode label: unrecognised payload")
		}
		list = nested[0]
	}
	if len(list) == 0 {
		return labelResponse{}, errors.New("decode label: empty result")
	}
	best := list[0]
	for _, l := range list[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	if best.Label == "" {
		return labelResponse{}, errors.New("decode label: missing label")
	}
	return best, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package scraper

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

// Options tune what is requested per app.
type Options struct {
	Count   int    // reviews per app
	Lang    string // default "en"
	Country string // default "et"
	Source  string // stamped on records that carry no source
	Workers int    // apps fetched concurrently
	RPS     int
}

// Client pulls raw reviews from a review-scraper HTTP service. It implements
// domain.RawRecordSource.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
	opt  Options
}

func New(base, key string, opt Options) (*Client, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("scraper base URL is required")
	}
	if opt.RPS <= 0 {
		opt.RPS = 5
	}
	if opt.Count <= 0 {
		opt.Count = 400
	}
	if opt.Workers <= 0 {
		opt.Workers = 3
	}
	if opt.Lang == "" {
		opt.Lang = "en"
	}
	if opt.Country == "" {
		opt.Country = "et"
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(opt.RPS), opt.RPS),
		opt:  opt,
	}, nil
}

// Fetch downloads reviews for every bank's app. Results keep bank order; one
// failed app fails the whole fetch.
func (c *Client) Fetch(ctx context.Context, banks []domain.Bank) ([]map[string]any, error) {
	per := make([][]map[string]any, len(banks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opt.Workers)
	for i, b := range banks {
		i, b := i, b
		g.Go(func() error {
			recs, err := c.GetReviews(gctx, b.AppID)
			if err != nil {
				return fmt.Errorf("fetch %s (%s): %w", b.Name, b.AppID, err)
			}
			for _, r := range recs {
				stamp(r, b, c.opt.Source)
			}
			log.Info().Str("bank", b.Name).Int("reviews", len(recs)).Msg("fetched reviews")
			per[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, recs := range per {
		out = append(out, recs...)
	}
	return out, nil
}

// stamp attaches the bank and the source tag when the payload lacks them.
func stamp(r map[string]any, b domain.Bank, source string) {
	if s, _ := r["bank"].(string); strings.TrimSpace(s) == "" {
		r["bank"] = b.Name
	}
	if source != "" {
		if s, _ := r["source"].(string); strings.TrimSpace(s) == "" {
			r["source"] = source
		}
	}
}

// GetReviews returns up to Count raw reviews for one app id.
func (c *Client) GetReviews(ctx context.Context, appID string) ([]map[string]any, error) {
	if appID == "" {
		return nil, errors.New("empty app id")
	}
	q := url.Values{}
	q.Set("lang", c.opt.Lang)
	q.Set("country", c.opt.Country)
	q.Set("count", strconv.Itoa(c.opt.Count))
	id := url.PathEscape(appID)
	candidates := []string{
		fmt.Sprintf("%s/apps/%s/reviews?%s", c.base, id, q.Encode()), // preferred
		fmt.Sprintf("%s/reviews/%s?%s", c.base, id, q.Encode()),      // legacy
	}
	var raw json.RawMessage
	if err := c.getFirst(ctx, candidates, &raw); err != nil {
		return nil, err
	}
	recs, err := decodeReviews(raw)
	if err != nil {
		return nil, err
	}
	if len(recs) > c.opt.Count {
		recs = recs[:c.opt.Count]
	}
	return recs, nil
}

// decodeReviews accepts a bare array or an object wrapping one.
func decodeReviews(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	for _, k := range []string{"reviews", "data", "items", "results"} {
		if v, ok := obj[k]; ok {
			if err := json.Unmarshal(v, &arr); err != nil {
				return nil, fmt.Errorf("decode reviews.%s: %w", k, err)
			}
			return arr, nil
		}
	}
	return nil, errors.New("decode reviews: no review array in payload")
}

var (
	ErrNotFound     = errors.New("scraper: not found")
	ErrUnauthorized = errors.New("scraper: unauthorized")
	ErrForbidden    = errors.New("scraper: forbidden")
)

func (c *Client) getFirst(ctx context.Context, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.get(ctx, u, out); err != nil {
			if errors.Is(err, ErrNotFound) {
				last = err
				continue
			}
			return err
		}
		return nil
	}
	if last != nil {
		return last
	}
	return errors.New("no candidate URL succeeded")
}

// get performs a rate-limited GET and decodes JSON into out. 429 and
// transient 5xx are retried, honoring Retry-After.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "bank-reviews/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("scraper", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("scraper", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date); 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

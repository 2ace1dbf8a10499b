package httpserver

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bank_reviews/internal/adapters/observability"
)

// Timeout answers 503 with a problem body when a handler overruns d.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	const body = `{"type":"about:blank","title":"Timeout","status":503}`
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, body) }
}

// routeOf prefers the chi pattern so metrics do not explode per bank id.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// Metrics records one sample per request under its chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		observability.ObserveHTTP(routeOf(r), r.Method, statusOf(ww), time.Since(start))
	})
}

// statusOf treats a handler that never wrote a header as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// Logger writes one line per request; 5xx are logged at error level. The
// remote address is whatever chi's RealIP left in r.RemoteAddr.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			ev := l.Info()
			if status >= 500 {
				ev = l.Error()
			}
			ev.
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("route", routeOf(r)).
				Str("method", r.Method).
				Str("query", r.URL.RawQuery).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", hostOnly(r.RemoteAddr)).
				Msg("http_request")
		})
	}
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "bank_reviews"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	StageRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "stage_records_total", Help: "Records that completed a pipeline stage."},
		[]string{"stage"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Pipeline stage duration seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)
	Scoring = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "scoring_total", Help: "Sentiment scorer calls."},
		[]string{"strategy", "outcome"}, // outcome: ok|error|timeout
	)
	ScoringLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "scoring_duration_seconds",
			Help:    "Sentiment scorer call duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "runs_total", Help: "Ingestion runs by final status."},
		[]string{"status"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		StageRecords, StageDuration, Scoring, ScoringLatency, Runs,
	}
}

// Serve exposes the default registry on addr; empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	reg := InitRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors()...)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveStage(stage string, records int, dur time.Duration) {
	StageRecords.WithLabelValues(stage).Add(float64(records))
	StageDuration.WithLabelValues(stage).Observe(dur.Seconds())
}

func ObserveScoring(strategy, outcome string, dur time.Duration) {
	Scoring.WithLabelValues(strategy, outcome).Inc()
	ScoringLatency.WithLabelValues(strategy).Observe(dur.Seconds())
}

func ObserveRun(status string) {
	Runs.WithLabelValues(status).Inc()
}

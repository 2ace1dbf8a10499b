package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	StoreBackend string
	StoreDSN     string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	Source        string // csv|scraper
	SourcePath    string
	ScraperBase   string
	ScraperKey    string
	ScraperRPS    int
	ScrapeWorkers int
	ReviewCount   int
	SourceTag     string
	SkipInvalid   bool

	Scorer        string // lexicon|http-polarity|http-label
	ScorerURL     string
	ScorerKey     string
	ScorerTimeout time.Duration
	ScorerWorkers int
	ScorerRPS     int

	CatalogFile string

	KafkaBrokers []string
	KafkaTopic   string

	Schedule string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric env value")
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		StoreBackend:  strings.ToLower(env("STORE_BACKEND", "mysql")),
		StoreDSN:      env("STORE_DSN", "root:root@tcp(localhost:3306)/bank_reviews?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		Source:        strings.ToLower(env("SOURCE", "csv")),
		SourcePath:    env("SOURCE_PATH", "bank_reviews_raw.csv"),
		ScraperBase:   env("SCRAPER_BASE_URL", "http://localhost:8000"),
		ScraperKey:    env("SCRAPER_API_KEY", ""),
		ScraperRPS:    atoi("SCRAPER_RPS", 5),
		ScrapeWorkers: atoi("SCRAPER_WORKERS", 3),
		ReviewCount:   atoi("INGEST_REVIEW_COUNT", 400),
		SourceTag:     env("INGEST_SOURCE_TAG", "Google Play"),
		SkipInvalid:   envBool("INGEST_SKIP_INVALID", false),
		Scorer:        strings.ToLower(env("SCORER", "lexicon")),
		ScorerURL:     env("SCORER_URL", "http://localhost:8500/score"),
		ScorerKey:     os.Getenv("SCORER_API_KEY"),
		ScorerTimeout: time.Duration(atoi("SCORER_TIMEOUT_MS", 3000)) * time.Millisecond,
		ScorerWorkers: atoi("SCORER_WORKERS", 8),
		ScorerRPS:     atoi("SCORER_RPS", 20),
		CatalogFile:   os.Getenv("CATALOG_FILE"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    env("KAFKA_TOPIC", "bank-reviews.labeled"),
		Schedule:      env("INGEST_SCHEDULE", "0 3 * * *"),
	}
	if c.Source == "scraper" && c.ScraperKey == "" {
		log.Warn().Msg("SCRAPER_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

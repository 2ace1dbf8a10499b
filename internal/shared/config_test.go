package shared

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	c := Load()
	if c.StoreBackend != "mysql" {
		t.Fatalf("backend: %s", c.StoreBackend)
	}
	if c.Scorer != "lexicon" || c.ScorerWorkers != 8 || c.ScorerTimeout != 3*time.Second {
		t.Fatalf("scorer defaults: %+v", c)
	}
	if c.SourceTag != "Google Play" || c.ReviewCount != 400 {
		t.Fatalf("ingest defaults: %+v", c)
	}
	if len(c.KafkaBrokers) != 0 {
		t.Fatalf("kafka should be disabled by default: %v", c.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SCORER_TIMEOUT_MS", "250")
	t.Setenv("INGEST_SKIP_INVALID", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCORER_WORKERS", "not-a-number")

	c := Load()
	if c.StoreBackend != "sqlite" {
		t.Fatalf("backend: %s", c.StoreBackend)
	}
	if c.ScorerTimeout != 250*time.Millisecond {
		t.Fatalf("timeout: %s", c.ScorerTimeout)
	}
	if !c.SkipInvalid {
		t.Fatal("expected SkipInvalid")
	}
	if len(c.KafkaBrokers) != 2 || c.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers: %v", c.KafkaBrokers)
	}
	if c.ScorerWorkers != 8 {
		t.Fatalf("bad number should keep default, got %d", c.ScorerWorkers)
	}
}

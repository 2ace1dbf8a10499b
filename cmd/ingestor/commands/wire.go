package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/adapters/csvsource"
	kafkapub "bank_reviews/internal/adapters/kafka"
	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/adapters/scorer"
	"bank_reviews/internal/adapters/scraper"
	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
	"bank_reviews/internal/shared"
	"bank_reviews/internal/storage/sqlstore"
)

func openStore(ctx context.Context, c shared.Config) (*sqlstore.Repo, error) {
	b, err := sqlstore.ParseBackend(c.StoreBackend)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, b, c.StoreDSN)
}

func newSource(c shared.Config) (domain.RawRecordSource, error) {
	switch c.Source {
	case "csv", "file":
		return csvsource.New(c.SourcePath, c.SourceTag), nil
	case "scraper":
		cl, err := scraper.New(c.ScraperBase, c.ScraperKey, scraper.Options{
			Count:   c.ReviewCount,
			Source:  c.SourceTag,
			Workers: c.ScrapeWorkers,
			RPS:     c.ScraperRPS,
		})
		if err != nil {
			return nil, err
		}
		return cl, nil
	}
	return nil, fmt.Errorf("unknown source %q (want csv|scraper)", c.Source)
}

func newLabeler(c shared.Config) (*app.SentimentLabeler, error) {
	opts := app.LabelerOptions{Workers: c.ScorerWorkers, Timeout: c.ScorerTimeout}
	switch c.Scorer {
	case "lexicon":
		return app.NewPolarityLabeler(scorer.NewLexicon(), opts), nil
	case "http-polarity", "http-label":
		s, err := scorer.NewHTTP(c.ScorerURL, c.ScorerKey, c.ScorerTimeout, c.ScorerRPS)
		if err != nil {
			return nil, err
		}
		if c.Scorer == "http-label" {
			return app.NewClassifierLabeler(s, opts), nil
		}
		return app.NewPolarityLabeler(s, opts), nil
	}
	return nil, fmt.Errorf("unknown scorer %q (want lexicon|http-polarity|http-label)", c.Scorer)
}

// newCache returns nil when redis is not configured or unreachable.
func newCache(ctx context.Context, c shared.Config) (domain.Cache, func()) {
	if c.RedisAddr == "" {
		return nil, func() {}
	}
	rc := redisad.New(c.RedisAddr, c.RedisPass, c.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unreachable, skipping cache invalidation")
		_ = rc.Close()
		return nil, func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func newPublisher(c shared.Config) (domain.Publisher, func()) {
	if len(c.KafkaBrokers) == 0 {
		return nil, func() {}
	}
	p := kafkapub.New(c.KafkaBrokers, c.KafkaTopic)
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka writer close failed")
		}
	}
}

// pipeline wires every port of an ingestion run from c. The returned func
// releases what was opened.
func pipeline(ctx context.Context, c shared.Config) (*app.IngestionService, *sqlstore.Repo, func(), error) {
	cat, err := shared.LoadCatalog(c.CatalogFile)
	if err != nil {
		return nil, nil, nil, err
	}
	src, err := newSource(c)
	if err != nil {
		return nil, nil, nil, err
	}
	labeler, err := newLabeler(c)
	if err != nil {
		return nil, nil, nil, err
	}
	repo, err := openStore(ctx, c)
	if err != nil {
		return nil, nil, nil, err
	}
	cache, closeCache := newCache(ctx, c)
	pub, closePub := newPublisher(c)

	ing := app.NewIngestionService(app.IngestionDeps{
		Source:    src,
		Repo:      repo,
		Cache:     cache,
		Publisher: pub,
		Catalog:   cat,
		Labeler:   labeler,
		Clean:     app.CleanOptions{Source: c.SourceTag, SkipInvalid: c.SkipInvalid},
	})
	cleanup := func() {
		closePub()
		closeCache()
		_ = repo.Close()
	}
	return ing, repo, cleanup, nil
}

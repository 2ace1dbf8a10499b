package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bank_reviews/internal/adapters/observability"
	"bank_reviews/internal/domain"
)

type IngestionDeps struct {
	Source    domain.RawRecordSource
	Repo      domain.ReviewRepository
	Cache     domain.Cache     // optional
	Publisher domain.Publisher // optional
	Catalog   *domain.Catalog
	Labeler   *SentimentLabeler
	Clean     CleanOptions
}

type IngestionService struct {
	source    domain.RawRecordSource
	repo      domain.ReviewRepository
	cache     domain.Cache
	pub       domain.Publisher
	catalog   *domain.Catalog
	cleaner   *Cleaner
	tagger    *ThemeTagger
	labeler   *SentimentLabeler
	assembler *DatasetAssembler
	now       func() time.Time
}

func NewIngestionService(d IngestionDeps) *IngestionService {
	return &IngestionService{
		source:    d.Source,
		repo:      d.Repo,
		cache:     d.Cache,
		pub:       d.Publisher,
		catalog:   d.Catalog,
		cleaner:   NewCleaner(d.Catalog, d.Clean),
		tagger:    NewThemeTagger(d.Catalog.Themes()),
		labeler:   d.Labeler,
		assembler: NewDatasetAssembler(d.Catalog),
		now:       time.Now,
	}
}

// SeedBanks upserts the catalog's bank reference table.
func (s *IngestionService) SeedBanks(ctx context.Context) error {
	if err := s.repo.UpsertBanks(ctx, s.catalog.Banks()); err != nil {
		return err
	}
	if s.cache != nil {
		s.invalidateReports(ctx)
	}
	return nil
}

// Run executes fetch → clean → tag → label → assemble → persist → publish.
// A failed run returns a *domain.StageError naming the stage and how many
// records made it through the last completed stage. Every run is recorded.
func (s *IngestionService) Run(ctx context.Context) (domain.RunReport, error) {
	rep := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
		Counts:    map[domain.Stage]int{},
		Strategy:  s.labeler.Strategy(),
	}
	l := log.With().Str("run_id", rep.RunID).Logger()
	l.Info().Str("strategy", rep.Strategy).Msg("ingestion run starting")

	processed := 0
	fail := func(stage domain.Stage, err error) (domain.RunReport, error) {
		serr := &domain.StageError{Stage: stage, Processed: processed, Err: err}
		rep.Status = domain.RunFailed
		rep.FailedStage = stage
		rep.Processed = processed
		rep.Err = err.Error()
		s.finish(ctx, &rep)
		l.Error().Err(err).Str("stage", string(stage)).Int("processed", processed).Msg("ingestion run failed")
		return rep, serr
	}
	done := func(stage domain.Stage, n int, start time.Time) {
		processed = n
		rep.Counts[stage] = n
		observability.ObserveStage(string(stage), n, time.Since(start))
		l.Info().Str("stage", string(stage)).Int("records", n).Dur("took", time.Since(start)).Msg("stage done")
	}

	// 1) fetch
	start := time.Now()
	raw, err := s.source.Fetch(ctx, s.catalog.Banks())
	if err != nil {
		return fail(domain.StageFetch, err)
	}
	done(domain.StageFetch, len(raw), start)

	// 2) clean
	start = time.Now()
	reviews, st, err := s.cleaner.Clean(mapRawRecords(raw))
	if err != nil {
		return fail(domain.StageClean, err)
	}
	rep.Skipped = st.Skipped
	l.Info().
		Int("duplicates", st.Duplicates).
		Int("incomplete", st.Incomplete).
		Int("imputed", st.Imputed).
		Int("skipped", st.Skipped).
		Msg("cleaning stats")
	done(domain.StageClean, len(reviews), start)

	// 3) themes
	start = time.Now()
	themes := s.tagger.TagAll(reviews)
	done(domain.StageTag, len(themes), start)

	// 4) sentiment
	start = time.Now()
	sents, err := s.labeler.LabelAll(ctx, reviews)
	if err != nil {
		return fail(domain.StageLabel, err)
	}
	for _, r := range sents {
		if r.Sentiment.Degraded {
			rep.Degraded++
		}
	}
	done(domain.StageLabel, len(sents), start)

	// 5) assemble
	start = time.Now()
	dataset, err := s.assembler.Assemble(reviews, themes, sents)
	if err != nil {
		return fail(domain.StageAssemble, err)
	}
	done(domain.StageAssemble, len(dataset), start)

	// 6) persist: parent rows first to satisfy the bank FK
	start = time.Now()
	if err := s.repo.UpsertBanks(ctx, s.catalog.Banks()); err != nil {
		return fail(domain.StagePersist, err)
	}
	if err := s.repo.UpsertReviews(ctx, dataset); err != nil {
		return fail(domain.StagePersist, err)
	}
	done(domain.StagePersist, len(dataset), start)

	// reports are stale now even if publishing fails below
	if s.cache != nil {
		s.invalidateReports(ctx)
	}

	// 7) publish
	if s.pub != nil {
		start = time.Now()
		if err := s.pub.PublishReviews(ctx, dataset); err != nil {
			return fail(domain.StagePublish, fmt.Errorf("publish: %w", err))
		}
		done(domain.StagePublish, len(dataset), start)
	}

	rep.Status = domain.RunOK
	rep.Processed = len(dataset)
	s.finish(ctx, &rep)
	l.Info().Int("reviews", rep.Processed).Int("degraded", rep.Degraded).Msg("ingestion run completed")
	return rep, nil
}

func (s *IngestionService) finish(ctx context.Context, rep *domain.RunReport) {
	rep.FinishedAt = s.now().UTC()
	observability.ObserveRun(string(rep.Status))

	// record even when the run's own context was cancelled
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.RecordRun(rctx, *rep); err != nil {
		log.Warn().Err(err).Str("run_id", rep.RunID).Msg("failed to record run")
	}
}

// invalidateReports drops every cached report and review page, whatever
// limit or filter it was cached under.
func (s *IngestionService) invalidateReports(ctx context.Context) {
	for _, p := range []string{reportPrefix, reviewsPrefix} {
		if err := s.cache.DelPrefix(ctx, p); err != nil {
			log.Warn().Err(err).Str("prefix", p).Msg("cache invalidation failed")
		}
	}
}

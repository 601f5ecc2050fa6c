// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// the two operational modes:
//
//   - Pipeline mode: feed ingestion, clustering, scoring, routing, and
//     publish-job enqueueing
//   - Digest mode: scheduled draining of the publish queue into posted digests
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedwire/newswire-bot/internal/ingest/rss"
	"github.com/feedwire/newswire-bot/internal/output/publish"
	"github.com/feedwire/newswire-bot/internal/platform/config"
	"github.com/feedwire/newswire-bot/internal/platform/observability"
	"github.com/feedwire/newswire-bot/internal/platform/schedule"
	"github.com/feedwire/newswire-bot/internal/platform/worker"
	"github.com/feedwire/newswire-bot/internal/process/cluster"
	"github.com/feedwire/newswire-bot/internal/process/moderation"
	"github.com/feedwire/newswire-bot/internal/process/pipeline"
	db "github.com/feedwire/newswire-bot/internal/storage"
)

const (
	weightCacheTTL     = 5 * time.Minute
	queueDepthInterval = time.Minute
)

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// SeedSourceWeights upserts configured domain weights into the weight
// table. An empty configuration is a no-op.
func (a *App) SeedSourceWeights(ctx context.Context) error {
	pairs, err := a.cfg.SourceWeightPairs()
	if err != nil {
		return fmt.Errorf("parse source weights: %w", err)
	}

	for domainName, weight := range pairs {
		if err := a.database.SetSourceWeight(ctx, domainName, weight); err != nil {
			return fmt.Errorf("seed source weight %s: %w", domainName, err)
		}
	}

	if len(pairs) > 0 {
		a.logger.Info().Int("domains", len(pairs)).Msg("source weights seeded")
	}

	return nil
}

// RunPipeline runs the ingest pipeline mode.
func (a *App) RunPipeline(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("Starting pipeline mode")

	if err := a.SeedSourceWeights(ctx); err != nil {
		return err
	}

	p, err := a.newPipeline()
	if err != nil {
		return err
	}

	if once {
		if err := p.RunOnce(ctx, time.Now()); err != nil {
			return fmt.Errorf("pipeline run once: %w", err)
		}

		return nil
	}

	err = worker.Loop(ctx, worker.Config{
		Name:         "pipeline",
		PollInterval: a.cfg.PipelineInterval,
		Process: func(ctx context.Context) error {
			defer worker.RecoverPanic(a.logger, "pipeline pass")

			return worker.RunWithTimeout(ctx, a.cfg.ProcessingTimeout, func(ctx context.Context) error {
				return p.RunOnce(ctx, time.Now())
			})
		},
		PeriodicTasks: []worker.PeriodicTask{{
			Name:     "queue_depth",
			Interval: queueDepthInterval,
			Run:      a.reportQueueDepth,
		}},
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	return nil
}

// RunDigest runs the digest publish mode.
func (a *App) RunDigest(ctx context.Context, once bool) error {
	a.logger.Info().Bool("once", once).Msg("Starting digest mode")

	scheduler, err := a.newScheduler()
	if err != nil {
		return err
	}

	publisher, err := a.newPublisher()
	if err != nil {
		return err
	}

	w := publish.NewWorker(a.database, publisher, scheduler, a.cfg.ClaimLimit, a.logger)

	if once {
		if err := w.RunOnce(ctx, time.Now()); err != nil {
			return fmt.Errorf("digest run once: %w", err)
		}

		return nil
	}

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("digest run: %w", err)
	}

	return nil
}

// reportQueueDepth refreshes the pending-jobs gauge from the database.
func (a *App) reportQueueDepth(ctx context.Context) {
	counts, err := a.database.PendingJobCounts(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("pending job counts failed")

		return
	}

	observability.JobsPending.Reset()

	for target, count := range counts {
		observability.JobsPending.WithLabelValues(string(target)).Set(float64(count))
	}
}

func (a *App) newPipeline() (*pipeline.Pipeline, error) {
	scheduler, err := a.newScheduler()
	if err != nil {
		return nil, err
	}

	publisher, err := a.newPublisher()
	if err != nil {
		return nil, err
	}

	clusterer, err := cluster.New(rss.Tokenizer{}, nil, cluster.Config{}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("clusterer init: %w", err)
	}

	weights := db.NewCachedWeights(a.database, weightCacheTTL)

	scorer := moderation.NewScorer(weights, moderation.ScorerConfig{
		BreakingThreshold:        a.cfg.BreakingThreshold,
		MinConfidenceAutopublish: a.cfg.MinConfidenceAutopublish,
		MaxBreakingAge:           a.cfg.MaxBreakingAge,
		DigestMinScore:           a.cfg.DigestMinScore,
		Tier0Weight:              a.cfg.Tier0Weight,
	})

	loc, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	policy := moderation.NewAntiNoisePolicy(a.database, moderation.AntiNoisePolicyConfig{
		MinIntervalBreaking: a.cfg.MinIntervalBreaking(),
		MaxPostsPerDay:      a.cfg.MaxPostsPerDay,
		Timezone:            loc,
	})

	return pipeline.New(pipeline.Config{
		Feeds:         a.cfg.FeedURLs,
		Fetcher:       rss.NewFetcher(a.cfg.FeedFetchTimeout, a.logger),
		Clusterer:     clusterer,
		Scorer:        scorer,
		Policy:        policy,
		Queue:         a.database,
		Recorder:      a.database,
		Publisher:     publisher,
		Scheduler:     scheduler,
		ReviewEnabled: a.cfg.ReviewEnabled,
		Logger:        a.logger,
	}), nil
}

func (a *App) newScheduler() (*schedule.SlotScheduler, error) {
	scheduler, err := schedule.NewSlotScheduler(a.cfg.DigestSlots, a.cfg.DigestFallbackDelay, a.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("slot scheduler init: %w", err)
	}

	return scheduler, nil
}

func (a *App) newPublisher() (*publish.TelegramPublisher, error) {
	publisher, err := publish.NewTelegramPublisher(a.cfg.BotToken, a.cfg.TargetChatID, a.cfg.ReviewChatID, a.cfg.RateLimitRPS, a.cfg.RateLimitBurst, a.logger)
	if err != nil {
		return nil, fmt.Errorf("telegram publisher init: %w", err)
	}

	return publisher, nil
}

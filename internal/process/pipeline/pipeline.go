// Package pipeline wires feed ingestion, clustering, scoring, routing,
// and job enqueueing into one periodic pass.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedwire/newswire-bot/internal/core/domain"
	"github.com/feedwire/newswire-bot/internal/output/publish"
	"github.com/feedwire/newswire-bot/internal/platform/observability"
	"github.com/feedwire/newswire-bot/internal/platform/schedule"
	"github.com/feedwire/newswire-bot/internal/process/cluster"
	"github.com/feedwire/newswire-bot/internal/process/moderation"
)

// Fetcher pulls articles from one feed.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.Article, error)
}

// JobQueue is the queue surface the pipeline needs.
type JobQueue interface {
	EnqueuePublishJob(ctx context.Context, req domain.PublishJobRequest) (domain.PublishJob, bool, error)
	MarkJobsStatus(ctx context.Context, ids []string, status domain.JobStatus, publishedAt *time.Time) error
	MarkPendingDigestSkipped(ctx context.Context, clusterID string) error
}

// BreakingRecorder appends to the breaking publish history.
type BreakingRecorder interface {
	RecordBreakingPublished(ctx context.Context, clusterID string, publishedAt time.Time) error
}

// Pipeline runs one ingest-to-enqueue pass over all configured feeds.
type Pipeline struct {
	feeds     []string
	fetcher   Fetcher
	clusterer *cluster.Clusterer
	scorer    *moderation.Scorer
	policy    *moderation.AntiNoisePolicy
	queue     JobQueue
	recorder  BreakingRecorder
	publisher publish.Publisher
	scheduler *schedule.SlotScheduler

	reviewEnabled bool
	logger        *zerolog.Logger
}

// Config collects pipeline dependencies.
type Config struct {
	Feeds         []string
	Fetcher       Fetcher
	Clusterer     *cluster.Clusterer
	Scorer        *moderation.Scorer
	Policy        *moderation.AntiNoisePolicy
	Queue         JobQueue
	Recorder      BreakingRecorder
	Publisher     publish.Publisher
	Scheduler     *schedule.SlotScheduler
	ReviewEnabled bool
	Logger        *zerolog.Logger
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		feeds:         cfg.Feeds,
		fetcher:       cfg.Fetcher,
		clusterer:     cfg.Clusterer,
		scorer:        cfg.Scorer,
		policy:        cfg.Policy,
		queue:         cfg.Queue,
		recorder:      cfg.Recorder,
		publisher:     cfg.Publisher,
		scheduler:     cfg.Scheduler,
		reviewEnabled: cfg.ReviewEnabled,
		logger:        cfg.Logger,
	}
}

// RunOnce fetches all feeds, clusters the articles, and routes every
// cluster. Feed failures are logged and skipped; the pass continues with
// whatever arrived.
func (p *Pipeline) RunOnce(ctx context.Context, now time.Time) error {
	started := time.Now()
	defer func() {
		observability.PipelineBatchDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	articles := p.fetchAll(ctx, now)
	if len(articles) == 0 {
		p.logger.Info().Msg("no articles fetched, nothing to route")

		return nil
	}

	clusters := p.clusterer.Cluster(articles)
	observability.ClustersBuilt.Set(float64(len(clusters)))

	for _, c := range clusters {
		observability.ClusterMembers.Observe(float64(len(c.Members)))

		if err := p.routeCluster(ctx, c, now); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			p.logger.Error().Err(err).Str("cluster", c.Key).Msg("routing cluster failed")
		}
	}

	p.logger.Info().Int("articles", len(articles)).Int("clusters", len(clusters)).Msg("pipeline pass complete")

	return nil
}

func (p *Pipeline) fetchAll(ctx context.Context, now time.Time) []domain.Article {
	var articles []domain.Article

	for _, feedURL := range p.feeds {
		fetched, err := p.fetcher.Fetch(ctx, feedURL)
		if err != nil {
			observability.FeedFetchErrors.WithLabelValues(feedURL).Inc()
			p.logger.Warn().Err(err).Str("feed", feedURL).Msg("feed fetch failed")

			continue
		}

		observability.ArticlesIngested.WithLabelValues(feedURL).Add(float64(len(fetched)))

		for _, article := range fetched {
			observability.ArticleAgeSeconds.Observe(now.Sub(article.PublishedAt).Seconds())
		}

		articles = append(articles, fetched...)
	}

	return articles
}

func (p *Pipeline) routeCluster(ctx context.Context, c domain.Cluster, now time.Time) error {
	score, err := p.scorer.Score(ctx, c, now)
	if err != nil {
		return fmt.Errorf("score cluster: %w", err)
	}

	route := moderation.Route(score, p.reviewEnabled)
	observability.RoutesTotal.WithLabelValues(string(route)).Inc()

	switch route {
	case domain.RoutePublishNow:
		return p.handleBreaking(ctx, c, now)
	case domain.RouteDigest:
		return p.enqueue(ctx, c, domain.TargetDigest, p.scheduler.NextSlot(now))
	case domain.RouteReview:
		return p.handleReview(ctx, c, now)
	case domain.RouteDrop:
		p.logger.Debug().Str("cluster", c.Key).Float64("score", score.Score).Msg("cluster dropped")

		return nil
	default:
		return fmt.Errorf("unknown route %q", route)
	}
}

// handleBreaking publishes immediately when the anti-noise policy allows,
// otherwise demotes the cluster to the next digest.
func (p *Pipeline) handleBreaking(ctx context.Context, c domain.Cluster, now time.Time) error {
	job, created, err := p.enqueueJob(ctx, c, domain.TargetBreaking, now)
	if err != nil {
		return err
	}

	// A terminal row means an earlier pass already settled this cluster.
	if !created && job.Status.Terminal() {
		return nil
	}

	decision, err := p.policy.AllowBreaking(ctx, now)
	if err != nil {
		return fmt.Errorf("anti-noise check: %w", err)
	}

	if !decision.Allowed {
		observability.BreakingDenied.WithLabelValues(string(decision.Reason)).Inc()
		p.logger.Info().
			Str("cluster", c.Key).
			Str("reason", string(decision.Reason)).
			Time("next_allowed_at", decision.NextAllowedAt).
			Msg("breaking publish denied, demoting to digest")

		if err := p.queue.MarkJobsStatus(ctx, []string{job.ID}, domain.JobStatusSkipped, nil); err != nil {
			return fmt.Errorf("skip denied breaking job: %w", err)
		}

		return p.enqueue(ctx, c, domain.TargetDigest, p.scheduler.NextSlot(now))
	}

	outcome, err := p.publisher.PublishBreaking(ctx, payloadFor(c))
	if err != nil {
		if markErr := p.queue.MarkJobsStatus(ctx, []string{job.ID}, domain.JobStatusFailed, nil); markErr != nil {
			p.logger.Error().Err(markErr).Str("job", job.ID).Msg("marking failed breaking job")
		}

		return fmt.Errorf("publish breaking: %w", err)
	}

	observability.BreakingPublished.Inc()

	publishedAt := now
	if err := p.queue.MarkJobsStatus(ctx, []string{job.ID}, domain.JobStatusPublished, &publishedAt); err != nil {
		return fmt.Errorf("mark breaking job published: %w", err)
	}

	if err := p.recorder.RecordBreakingPublished(ctx, c.Key, now); err != nil {
		return fmt.Errorf("record breaking history: %w", err)
	}

	// The same story must not reappear in a later digest.
	if err := p.queue.MarkPendingDigestSkipped(ctx, c.Key); err != nil {
		return fmt.Errorf("skip pending digest: %w", err)
	}

	p.logger.Info().Str("cluster", c.Key).Str("outcome", string(outcome)).Msg("breaking published")

	return nil
}

// handleReview parks the cluster as a review job and pings the review
// chat. A failed ping is logged and does not fail the route since the job
// row already holds the cluster.
func (p *Pipeline) handleReview(ctx context.Context, c domain.Cluster, now time.Time) error {
	_, created, err := p.enqueueJob(ctx, c, domain.TargetReview, now)
	if err != nil {
		return err
	}

	if !created {
		return nil
	}

	if _, err := p.publisher.PublishReview(ctx, payloadFor(c)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		p.logger.Warn().Err(err).Str("cluster", c.Key).Msg("review prompt failed")
	}

	return nil
}

func (p *Pipeline) enqueue(ctx context.Context, c domain.Cluster, target domain.PublishTarget, scheduledAt time.Time) error {
	_, _, err := p.enqueueJob(ctx, c, target, scheduledAt)

	return err
}

// enqueueJob enqueues idempotently. The second return value reports
// whether the queue created a new row as opposed to returning an
// existing one.
func (p *Pipeline) enqueueJob(ctx context.Context, c domain.Cluster, target domain.PublishTarget, scheduledAt time.Time) (domain.PublishJob, bool, error) {
	payload, err := json.Marshal(payloadFor(c))
	if err != nil {
		return domain.PublishJob{}, false, fmt.Errorf("marshal cluster payload: %w", err)
	}

	job, created, err := p.queue.EnqueuePublishJob(ctx, domain.PublishJobRequest{
		ClusterID:   c.Key,
		Target:      target,
		Payload:     payload,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return domain.PublishJob{}, false, fmt.Errorf("enqueue %s job: %w", target, err)
	}

	if created {
		observability.JobsEnqueued.WithLabelValues(string(target)).Inc()
	}

	return job, created, nil
}

func payloadFor(c domain.Cluster) publish.ClusterPayload {
	return publish.ClusterPayload{
		ClusterKey:  c.Key,
		Headline:    c.Canonical.Title,
		URL:         c.Canonical.URL,
		Source:      c.Canonical.Domain,
		Topics:      c.Topics,
		MemberCount: len(c.Members),
		PublishedAt: c.Canonical.PublishedAt,
	}
}

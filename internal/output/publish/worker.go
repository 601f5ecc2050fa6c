package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/feedwire/newswire-bot/internal/core/domain"
	"github.com/feedwire/newswire-bot/internal/platform/observability"
	"github.com/feedwire/newswire-bot/internal/platform/schedule"
	"github.com/feedwire/newswire-bot/internal/platform/worker"
)

// JobQueue is the queue surface the worker needs.
type JobQueue interface {
	ClaimDueDigestJobs(ctx context.Context, now time.Time, limit int, ownerID string) ([]domain.PublishJob, int64, error)
	MarkJobsStatus(ctx context.Context, ids []string, status domain.JobStatus, publishedAt *time.Time) error
}

// Worker drains due digest jobs at scheduled slots and publishes them as
// one combined digest per pass.
type Worker struct {
	queue      JobQueue
	publisher  Publisher
	scheduler  *schedule.SlotScheduler
	ownerID    string
	claimLimit int
	logger     *zerolog.Logger
}

// NewWorker creates a publish worker with a fresh owner identity.
func NewWorker(queue JobQueue, publisher Publisher, scheduler *schedule.SlotScheduler, claimLimit int, logger *zerolog.Logger) *Worker {
	return &Worker{
		queue:      queue,
		publisher:  publisher,
		scheduler:  scheduler,
		ownerID:    uuid.NewString(),
		claimLimit: claimLimit,
		logger:     logger,
	}
}

// Run publishes at every scheduled slot until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		next := w.scheduler.NextSlot(time.Now())
		w.logger.Info().Time("next_slot", next).Msg("waiting for next digest slot")

		if err := worker.WaitUntil(ctx, next); err != nil {
			return err
		}

		if err := w.RunOnce(ctx, time.Now()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			w.logger.Error().Err(err).Msg("digest publish pass failed")
		}
	}
}

// RunOnce claims due jobs and publishes them as a single digest. The whole
// batch shares one fate: published on success or skip, failed on error.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	jobs, reclaimed, err := w.queue.ClaimDueDigestJobs(ctx, now, w.claimLimit, w.ownerID)
	if err != nil {
		return fmt.Errorf("claim digest jobs: %w", err)
	}

	if reclaimed > 0 {
		observability.JobsReclaimed.Add(float64(reclaimed))
	}

	if len(jobs) == 0 {
		return nil
	}

	observability.JobsClaimed.Add(float64(len(jobs)))

	// Newest clusters first in the rendered digest.
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	digest := Digest{Now: now, Items: make([]ClusterPayload, 0, len(jobs))}

	for _, job := range jobs {
		var item ClusterPayload
		if err := json.Unmarshal(job.Payload, &item); err != nil {
			w.logger.Warn().Err(err).Str("job", job.ID).Msg("skipping job with malformed payload")

			continue
		}

		digest.Items = append(digest.Items, item)
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	outcome, pubErr := w.publisher.PublishDigest(ctx, digest)
	observability.DigestsPublished.WithLabelValues(string(outcome)).Inc()

	if pubErr != nil {
		if errors.Is(pubErr, context.Canceled) || errors.Is(pubErr, context.DeadlineExceeded) {
			return pubErr
		}

		if err := w.queue.MarkJobsStatus(ctx, ids, domain.JobStatusFailed, nil); err != nil {
			return fmt.Errorf("mark jobs failed: %w", err)
		}

		return fmt.Errorf("publish digest: %w", pubErr)
	}

	publishedAt := now
	if err := w.queue.MarkJobsStatus(ctx, ids, domain.JobStatusPublished, &publishedAt); err != nil {
		return fmt.Errorf("mark jobs published: %w", err)
	}

	w.logger.Info().Int("jobs", len(ids)).Str("outcome", string(outcome)).Msg("digest pass complete")

	return nil
}

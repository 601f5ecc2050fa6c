package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedwire/newswire-bot/internal/core/domain"
	"github.com/feedwire/newswire-bot/internal/ingest/rss"
	"github.com/feedwire/newswire-bot/internal/output/publish"
	"github.com/feedwire/newswire-bot/internal/platform/schedule"
	"github.com/feedwire/newswire-bot/internal/process/cluster"
	"github.com/feedwire/newswire-bot/internal/process/moderation"
)

type fakeFetcher struct {
	articles map[string][]domain.Article
	errs     map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) ([]domain.Article, error) {
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}

	return f.articles[feedURL], nil
}

type enqueueCall struct {
	req domain.PublishJobRequest
}

type fakeJobQueue struct {
	enqueued  []enqueueCall
	existing  map[string]domain.PublishJob
	marked    map[string]domain.JobStatus
	skippedBy []string

	// storedPrecision rounds timestamps the way the backing store would
	// before returning the row. Zero keeps them untouched.
	storedPrecision time.Duration

	nextID int
}

func (q *fakeJobQueue) EnqueuePublishJob(_ context.Context, req domain.PublishJobRequest) (domain.PublishJob, bool, error) {
	key := req.ClusterID + "/" + string(req.Target)
	if job, ok := q.existing[key]; ok {
		return job, false, nil
	}

	scheduledAt := req.ScheduledAt
	if q.storedPrecision > 0 {
		scheduledAt = scheduledAt.Truncate(q.storedPrecision)
	}

	q.enqueued = append(q.enqueued, enqueueCall{req: req})
	q.nextID++

	return domain.PublishJob{
		ID:          fmt.Sprintf("job-%d", q.nextID),
		ClusterID:   req.ClusterID,
		Target:      req.Target,
		Status:      domain.JobStatusPending,
		Payload:     req.Payload,
		ScheduledAt: scheduledAt,
	}, true, nil
}

func (q *fakeJobQueue) MarkJobsStatus(_ context.Context, ids []string, status domain.JobStatus, _ *time.Time) error {
	if q.marked == nil {
		q.marked = make(map[string]domain.JobStatus)
	}

	for _, id := range ids {
		q.marked[id] = status
	}

	return nil
}

func (q *fakeJobQueue) MarkPendingDigestSkipped(_ context.Context, clusterID string) error {
	q.skippedBy = append(q.skippedBy, clusterID)

	return nil
}

type fakeRecorder struct {
	recorded []string
}

func (r *fakeRecorder) RecordBreakingPublished(_ context.Context, clusterID string, _ time.Time) error {
	r.recorded = append(r.recorded, clusterID)

	return nil
}

type fakeBreakingPublisher struct {
	published []publish.ClusterPayload
	reviews   []publish.ClusterPayload
	err       error
}

func (p *fakeBreakingPublisher) PublishDigest(context.Context, publish.Digest) (domain.PublishOutcome, error) {
	return domain.OutcomeCreated, nil
}

func (p *fakeBreakingPublisher) PublishBreaking(_ context.Context, item publish.ClusterPayload) (domain.PublishOutcome, error) {
	if p.err != nil {
		return domain.OutcomeFailed, p.err
	}

	p.published = append(p.published, item)

	return domain.OutcomeCreated, nil
}

func (p *fakeBreakingPublisher) PublishReview(_ context.Context, item publish.ClusterPayload) (domain.PublishOutcome, error) {
	p.reviews = append(p.reviews, item)

	return domain.OutcomeCreated, nil
}

type staticWeights map[string]int

func (w staticWeights) WeightFor(_ context.Context, domainName string) (int, error) {
	if weight, ok := w[domainName]; ok {
		return weight, nil
	}

	return 50, nil
}

type fakeHistory struct {
	last      time.Time
	hasLast   bool
	dailyUsed int
}

func (h *fakeHistory) LastBreakingPublishedAt(context.Context) (time.Time, bool, error) {
	return h.last, h.hasLast, nil
}

func (h *fakeHistory) CountBreakingPublishedSince(context.Context, time.Time) (int, error) {
	return h.dailyUsed, nil
}

type pipelineFixture struct {
	pipeline  *Pipeline
	queue     *fakeJobQueue
	recorder  *fakeRecorder
	publisher *fakeBreakingPublisher
}

func newFixture(t *testing.T, fetcher Fetcher, feeds []string, weights staticWeights, history *fakeHistory) *pipelineFixture {
	t.Helper()

	nop := zerolog.Nop()

	clusterer, err := cluster.New(rss.Tokenizer{}, nil, cluster.Config{}, &nop)
	require.NoError(t, err)

	scorer := moderation.NewScorer(weights, moderation.ScorerConfig{
		BreakingThreshold:        70,
		MinConfidenceAutopublish: 0.6,
		MaxBreakingAge:           2 * time.Hour,
		DigestMinScore:           30,
		Tier0Weight:              85,
	})

	policy := moderation.NewAntiNoisePolicy(history, moderation.AntiNoisePolicyConfig{
		MinIntervalBreaking: 30 * time.Minute,
		MaxPostsPerDay:      10,
	})

	scheduler, err := schedule.NewSlotScheduler([]string{"09:00", "18:00"}, 30*time.Minute, "UTC")
	require.NoError(t, err)

	queue := &fakeJobQueue{}
	recorder := &fakeRecorder{}
	publisher := &fakeBreakingPublisher{}

	p := New(Config{
		Feeds:     feeds,
		Fetcher:   fetcher,
		Clusterer: clusterer,
		Scorer:    scorer,
		Policy:    policy,
		Queue:     queue,
		Recorder:  recorder,
		Publisher: publisher,
		Scheduler: scheduler,
		Logger:    &nop,
	})

	return &pipelineFixture{pipeline: p, queue: queue, recorder: recorder, publisher: publisher}
}

func article(id, host, title string, publishedAt time.Time) domain.Article {
	return domain.Article{
		ID:          id,
		URL:         "https://" + host + "/" + id,
		Domain:      host,
		Title:       title,
		Summary:     "summary with enough words to shingle the " + title + " story in detail today",
		PublishedAt: publishedAt,
	}
}

func TestRunOnceBreakingPublishedImmediately(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	fresh := article("a1", "toptier.com", "Central bank makes emergency rate cut decision", now.Add(-10*time.Minute))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {fresh}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"toptier.com": 90}, &fakeHistory{})

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	require.Len(t, fx.publisher.published, 1)
	assert.Equal(t, "Central bank makes emergency rate cut decision", fx.publisher.published[0].Headline)
	assert.Len(t, fx.recorder.recorded, 1)
	assert.Equal(t, fx.recorder.recorded, fx.queue.skippedBy)

	require.Len(t, fx.queue.enqueued, 1)
	assert.Equal(t, domain.TargetBreaking, fx.queue.enqueued[0].req.Target)
	assert.Equal(t, domain.JobStatusPublished, fx.queue.marked["job-1"])
}

func TestRunOnceBreakingDeniedDemotesToDigest(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	fresh := article("a1", "toptier.com", "Central bank makes emergency rate cut decision", now.Add(-10*time.Minute))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {fresh}}}
	// Last breaking post 5 minutes ago, inside the 30 minute interval.
	history := &fakeHistory{last: now.Add(-5 * time.Minute), hasLast: true}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"toptier.com": 90}, history)

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	assert.Empty(t, fx.publisher.published)
	assert.Empty(t, fx.recorder.recorded)

	require.Len(t, fx.queue.enqueued, 2)
	assert.Equal(t, domain.TargetBreaking, fx.queue.enqueued[0].req.Target)
	assert.Equal(t, domain.JobStatusSkipped, fx.queue.marked["job-1"])

	digest := fx.queue.enqueued[1].req
	assert.Equal(t, domain.TargetDigest, digest.Target)
	assert.Equal(t, time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC), digest.ScheduledAt)
}

func TestRunOnceMidScoreGoesToDigestSlot(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	// Default weight 50, fresh: score 50, digest candidate but not breaking.
	a := article("a1", "midtier.com", "Quarterly results show modest revenue growth", now.Add(-30*time.Minute))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {a}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{}, &fakeHistory{})

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	require.Len(t, fx.queue.enqueued, 1)
	assert.Equal(t, domain.TargetDigest, fx.queue.enqueued[0].req.Target)
	assert.Equal(t, time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC), fx.queue.enqueued[0].req.ScheduledAt)
}

func TestRunOnceLowScoreDropped(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	// Weight 10 and stale: score far below the digest floor.
	a := article("a1", "lowtier.com", "Minor regional story nobody needs urgently", now.Add(-26*time.Hour))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {a}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"lowtier.com": 10}, &fakeHistory{})

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	assert.Empty(t, fx.queue.enqueued)
	assert.Empty(t, fx.publisher.published)
}

func TestRunOnceLowScoreParkedForReviewWhenEnabled(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	a := article("a1", "lowtier.com", "Minor regional story nobody needs urgently", now.Add(-26*time.Hour))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {a}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"lowtier.com": 10}, &fakeHistory{})
	fx.pipeline.reviewEnabled = true

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	require.Len(t, fx.queue.enqueued, 1)
	assert.Equal(t, domain.TargetReview, fx.queue.enqueued[0].req.Target)
	assert.Equal(t, now, fx.queue.enqueued[0].req.ScheduledAt)

	require.Len(t, fx.publisher.reviews, 1)
	assert.Equal(t, "Minor regional story nobody needs urgently", fx.publisher.reviews[0].Headline)
}

func TestRunOnceReviewPromptSurvivesTimestampRounding(t *testing.T) {
	// Stored timestamps keep microseconds only, while the pass time
	// carries nanoseconds. The returned row must still count as freshly
	// created so the review prompt goes out.
	now := time.Date(2026, 1, 15, 12, 0, 0, 123456789, time.UTC)
	a := article("a1", "lowtier.com", "Minor regional story nobody needs urgently", now.Add(-26*time.Hour))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {a}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"lowtier.com": 10}, &fakeHistory{})
	fx.pipeline.reviewEnabled = true
	fx.queue.storedPrecision = time.Microsecond

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))

	require.Len(t, fx.queue.enqueued, 1)
	assert.Equal(t, domain.TargetReview, fx.queue.enqueued[0].req.Target)

	require.Len(t, fx.publisher.reviews, 1)
	assert.Equal(t, "Minor regional story nobody needs urgently", fx.publisher.reviews[0].Headline)
}

func TestRunOnceFeedFailureDoesNotAbortPass(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	a := article("a1", "midtier.com", "Quarterly results show modest revenue growth", now.Add(-30*time.Minute))

	fetcher := &fakeFetcher{
		articles: map[string][]domain.Article{"good": {a}},
		errs:     map[string]error{"bad": errors.New("connection refused")},
	}
	fx := newFixture(t, fetcher, []string{"bad", "good"}, staticWeights{}, &fakeHistory{})

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))
	assert.Len(t, fx.queue.enqueued, 1)
}

func TestRunOnceTerminalBreakingJobNotRepublished(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	fresh := article("a1", "toptier.com", "Central bank makes emergency rate cut decision", now.Add(-10*time.Minute))

	fetcher := &fakeFetcher{articles: map[string][]domain.Article{"feed1": {fresh}}}
	fx := newFixture(t, fetcher, []string{"feed1"}, staticWeights{"toptier.com": 90}, &fakeHistory{})

	// First pass publishes.
	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now))
	require.Len(t, fx.publisher.published, 1)

	// Simulate the row persisting between passes.
	published := fx.publisher.published[0]
	fx.queue.existing = map[string]domain.PublishJob{
		published.ClusterKey + "/" + string(domain.TargetBreaking): {
			ID:        "job-1",
			ClusterID: published.ClusterKey,
			Target:    domain.TargetBreaking,
			Status:    domain.JobStatusPublished,
		},
	}

	require.NoError(t, fx.pipeline.RunOnce(context.Background(), now.Add(time.Minute)))
	assert.Len(t, fx.publisher.published, 1, "already published cluster must not repeat")
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

// ErrJobConflictGone indicates the unique constraint fired on enqueue but
// the conflicting row disappeared before it could be read back.
var ErrJobConflictGone = errors.New("conflicting publish job no longer exists")

const jobColumns = `id, cluster_id, target, status, payload, scheduled_at, published_at, processing_owner, created_at, updated_at`

// EnqueuePublishJob inserts a publish job, or returns the existing job when
// one for the same (cluster, target) pair is already queued. The second
// return value reports whether the insert created a new row.
func (db *DB) EnqueuePublishJob(ctx context.Context, req domain.PublishJobRequest) (domain.PublishJob, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO publish_jobs (cluster_id, target, status, payload, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns+`
	`, toText(req.ClusterID), toText(string(req.Target)), toText(string(domain.JobStatusPending)), req.Payload, toTimestamptz(req.ScheduledAt))

	job, err := scanJob(row)
	if err == nil {
		return job, true, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return domain.PublishJob{}, false, fmt.Errorf("enqueue publish job: %w", err)
	}

	job, err = db.getJobByClusterTarget(ctx, req.ClusterID, req.Target)

	return job, false, err
}

func (db *DB) getJobByClusterTarget(ctx context.Context, clusterID string, target domain.PublishTarget) (domain.PublishJob, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM publish_jobs
		WHERE cluster_id = $1 AND target = $2
	`, toText(clusterID), toText(string(target)))

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublishJob{}, ErrJobConflictGone
		}

		return domain.PublishJob{}, fmt.Errorf("get publish job after conflict: %w", err)
	}

	return job, nil
}

// ClaimDueDigestJobs atomically claims up to limit due pending digest jobs
// for the given owner. Stale processing rows whose lease expired are first
// returned to pending so a crashed worker cannot strand them; the number of
// reclaimed rows is reported alongside the claimed batch.
func (db *DB) ClaimDueDigestJobs(ctx context.Context, now time.Time, limit int, ownerID string) ([]domain.PublishJob, int64, error) {
	reclaimed, err := db.reclaimStaleDigestJobs(ctx, now)
	if err != nil {
		return nil, 0, err
	}

	if reclaimed > 0 {
		db.Logger.Warn().Int64("count", reclaimed).Msg("reclaimed stale processing jobs")
	}

	rows, err := db.Pool.Query(ctx, `
		UPDATE publish_jobs j
		SET status = $1, processing_owner = $2, updated_at = now()
		FROM (
			SELECT id
			FROM publish_jobs
			WHERE status = $3 AND target = $4 AND scheduled_at <= $5
			ORDER BY scheduled_at, created_at
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		) due
		WHERE j.id = due.id AND j.status = $3
		RETURNING j.id, j.cluster_id, j.target, j.status, j.payload, j.scheduled_at, j.published_at, j.processing_owner, j.created_at, j.updated_at
	`, toText(string(domain.JobStatusProcessing)), toText(ownerID),
		toText(string(domain.JobStatusPending)), toText(string(domain.TargetDigest)),
		toTimestamptz(now), limit)
	if err != nil {
		return nil, reclaimed, fmt.Errorf("claim due digest jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.PublishJob

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, reclaimed, fmt.Errorf("scan claimed job: %w", err)
		}

		jobs = append(jobs, job)
	}

	if rows.Err() != nil {
		return nil, reclaimed, fmt.Errorf("iterate claimed jobs: %w", rows.Err())
	}

	return jobs, reclaimed, nil
}

// reclaimStaleDigestJobs returns expired processing digest rows to pending
// in a single conditional update.
func (db *DB) reclaimStaleDigestJobs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE publish_jobs
		SET status = $1, processing_owner = NULL, updated_at = now()
		WHERE status = $2 AND target = $3 AND updated_at < $4
	`, toText(string(domain.JobStatusPending)),
		toText(string(domain.JobStatusProcessing)),
		toText(string(domain.TargetDigest)),
		toTimestamptz(now.Add(-StaleProcessingAge)))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale digest jobs: %w", err)
	}

	return tag.RowsAffected(), nil
}

// MarkJobsStatus moves the given jobs to a terminal status and clears the
// processing owner. publishedAt is recorded only when non-nil.
func (db *DB) MarkJobsStatus(ctx context.Context, ids []string, status domain.JobStatus, publishedAt *time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := db.Pool.Exec(ctx, `
		UPDATE publish_jobs
		SET status = $1, processing_owner = NULL, published_at = COALESCE($2, published_at), updated_at = now()
		WHERE id = ANY($3::uuid[])
	`, toText(string(status)), toTimestamptzPtr(publishedAt), ids); err != nil {
		return fmt.Errorf("mark jobs status: %w", err)
	}

	return nil
}

// MarkPendingDigestSkipped skips a still-pending digest job for a cluster
// that was published through another path.
func (db *DB) MarkPendingDigestSkipped(ctx context.Context, clusterID string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE publish_jobs
		SET status = $1, updated_at = now()
		WHERE cluster_id = $2 AND target = $3 AND status = $4
	`, toText(string(domain.JobStatusSkipped)), toText(clusterID),
		toText(string(domain.TargetDigest)), toText(string(domain.JobStatusPending))); err != nil {
		return fmt.Errorf("mark pending digest skipped: %w", err)
	}

	return nil
}

// PendingJobCounts returns the number of pending jobs per target.
func (db *DB) PendingJobCounts(ctx context.Context) (map[domain.PublishTarget]int64, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT target, COUNT(*)
		FROM publish_jobs
		WHERE status = $1
		GROUP BY target
	`, toText(string(domain.JobStatusPending)))
	if err != nil {
		return nil, fmt.Errorf("count pending jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PublishTarget]int64)

	for rows.Next() {
		var (
			target pgtype.Text
			count  int64
		)

		if err := rows.Scan(&target, &count); err != nil {
			return nil, fmt.Errorf("scan pending job count: %w", err)
		}

		counts[domain.PublishTarget(fromText(target))] = count
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pending job counts: %w", rows.Err())
	}

	return counts, nil
}

func scanJob(row pgx.Row) (domain.PublishJob, error) {
	var (
		id          pgtype.UUID
		clusterID   pgtype.Text
		target      pgtype.Text
		status      pgtype.Text
		payload     []byte
		scheduledAt pgtype.Timestamptz
		publishedAt pgtype.Timestamptz
		owner       pgtype.Text
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	if err := row.Scan(&id, &clusterID, &target, &status, &payload, &scheduledAt, &publishedAt, &owner, &createdAt, &updatedAt); err != nil {
		return domain.PublishJob{}, err
	}

	job := domain.PublishJob{
		ID:          fromUUID(id),
		ClusterID:   fromText(clusterID),
		Target:      domain.PublishTarget(fromText(target)),
		Status:      domain.JobStatus(fromText(status)),
		Payload:     payload,
		ScheduledAt: fromTimestamptz(scheduledAt),
		PublishedAt: fromTimestamptzPtr(publishedAt),
		CreatedAt:   fromTimestamptz(createdAt),
		UpdatedAt:   fromTimestamptz(updatedAt),
	}

	if owner.Valid {
		v := owner.String
		job.ProcessingOwner = &v
	}

	return job, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RecordBreakingPublished appends a breaking publish event for a cluster.
func (db *DB) RecordBreakingPublished(ctx context.Context, clusterID string, publishedAt time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO breaking_posts (cluster_id, published_at)
		VALUES ($1, $2)
	`, toText(clusterID), toTimestamptz(publishedAt)); err != nil {
		return fmt.Errorf("record breaking published: %w", err)
	}

	return nil
}

// LastBreakingPublishedAt returns the most recent breaking publish time.
// The second return value is false when nothing has been published yet.
func (db *DB) LastBreakingPublishedAt(ctx context.Context) (time.Time, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT published_at
		FROM breaking_posts
		ORDER BY published_at DESC
		LIMIT 1
	`)

	var publishedAt pgtype.Timestamptz
	if err := row.Scan(&publishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}

		return time.Time{}, false, fmt.Errorf("last breaking published at: %w", err)
	}

	return fromTimestamptz(publishedAt), true, nil
}

// CountBreakingPublishedSince counts breaking publishes at or after since.
func (db *DB) CountBreakingPublishedSince(ctx context.Context, since time.Time) (int, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM breaking_posts
		WHERE published_at >= $1
	`, toTimestamptz(since))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count breaking published since: %w", err)
	}

	return count, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// WeightFor returns the editorial weight for a source domain, or the
// default when no entry exists. Weights are clamped to 0..100 on write.
func (db *DB) WeightFor(ctx context.Context, domainName string) (int, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT weight
		FROM source_weights
		WHERE domain = $1
	`, toText(domainName))

	var weight int
	if err := row.Scan(&weight); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSourceWeight, nil
		}

		return 0, fmt.Errorf("get source weight: %w", err)
	}

	return weight, nil
}

// SetSourceWeight upserts the weight for a source domain.
func (db *DB) SetSourceWeight(ctx context.Context, domainName string, weight int) error {
	if weight < 0 {
		weight = 0
	}

	if weight > 100 {
		weight = 100
	}

	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO source_weights (domain, weight)
		VALUES ($1, $2)
		ON CONFLICT (domain) DO UPDATE SET weight = EXCLUDED.weight, updated_at = now()
	`, toText(domainName), weight); err != nil {
		return fmt.Errorf("set source weight: %w", err)
	}

	return nil
}

type cachedWeight struct {
	weight    int
	fetchedAt time.Time
}

// CachedWeights memoizes WeightFor lookups for a fixed TTL. Weights change
// rarely, so scoring a batch should not hit the database per article.
type CachedWeights struct {
	db  *DB
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cachedWeight
}

// NewCachedWeights wraps the database weight lookup with a TTL cache.
func NewCachedWeights(db *DB, ttl time.Duration) *CachedWeights {
	return &CachedWeights{
		db:      db,
		ttl:     ttl,
		entries: make(map[string]cachedWeight),
	}
}

// WeightFor returns the cached weight for a domain, refreshing on expiry.
func (c *CachedWeights) WeightFor(ctx context.Context, domainName string) (int, error) {
	c.mu.Lock()
	entry, ok := c.entries[domainName]
	c.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.weight, nil
	}

	weight, err := c.db.WeightFor(ctx, domainName)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[domainName] = cachedWeight{weight: weight, fetchedAt: time.Now()}
	c.mu.Unlock()

	return weight, nil
}

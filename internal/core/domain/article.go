// Package domain holds the core value types shared across the pipeline:
// ingested articles, deduplicated clusters, moderation verdicts, and
// publish jobs.
package domain

import "time"

// Article is an immutable ingested news item. Articles are produced by
// the ingestion layer and consumed read-only by the clusterer.
type Article struct {
	ID          string
	URL         string
	Domain      string
	Title       string
	Summary     string
	PublishedAt time.Time
	Language    string
	Entities    []string
	Tickers     []string
}

// Tags returns the union of entities and tickers, used for cheap
// same-story matching between articles and clusters.
func (a Article) Tags() []string {
	out := make([]string, 0, len(a.Entities)+len(a.Tickers))
	out = append(out, a.Entities...)
	out = append(out, a.Tickers...)

	return out
}

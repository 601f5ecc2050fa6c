// Package publish delivers queued clusters to the outbound channel.
package publish

import (
	"context"
	"time"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

// ClusterPayload is the snapshot of a cluster stored in a publish job.
// Jobs carry everything needed to render, so publishing never re-reads
// the clustering state.
type ClusterPayload struct {
	ClusterKey  string    `json:"cluster_key"`
	Headline    string    `json:"headline"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Topics      []string  `json:"topics,omitempty"`
	MemberCount int       `json:"member_count"`
	PublishedAt time.Time `json:"published_at"`
}

// Digest is a batch of clusters rendered into a single outbound post.
type Digest struct {
	Items []ClusterPayload
	Now   time.Time
}

// Publisher sends rendered content to the outbound channels.
type Publisher interface {
	PublishDigest(ctx context.Context, digest Digest) (domain.PublishOutcome, error)
	PublishBreaking(ctx context.Context, item ClusterPayload) (domain.PublishOutcome, error)
	PublishReview(ctx context.Context, item ClusterPayload) (domain.PublishOutcome, error)
}

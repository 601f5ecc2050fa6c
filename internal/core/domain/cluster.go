package domain

import "time"

// Cluster is a finalized, immutable group of near-duplicate articles
// produced by one clustering pass.
type Cluster struct {
	// Key is a stable hash derived from the first member.
	Key string
	// Canonical is the representative article chosen to speak for the
	// cluster in published output.
	Canonical Article
	// Members are sorted by publish time ascending.
	Members []Article
	Topics  []string
	// CreatedAt equals the earliest member's publish time.
	CreatedAt time.Time
}

// Age returns how old the cluster is at the given instant.
func (c Cluster) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

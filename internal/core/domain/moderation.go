package domain

// ModerationScore is a read-only projection of a cluster plus its
// publish-worthiness verdict. Never mutated after creation.
type ModerationScore struct {
	Cluster    Cluster
	Weight     int
	Score      float64
	Confidence float64
	// Tier0 marks top-weight sources for downstream UI/ops; it does not
	// gate routing.
	Tier0             bool
	BreakingCandidate bool
	DigestCandidate   bool
}

// Route classifies a scored cluster.
type Route string

// Routing outcomes.
const (
	RoutePublishNow Route = "publish_now"
	RouteDigest     Route = "digest"
	RouteReview     Route = "review"
	RouteDrop       Route = "drop"
)

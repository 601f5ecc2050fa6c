// Package moderation scores clusters for publish-worthiness, routes
// them to a publish surface, and rate-limits breaking posts.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

// Freshness step boundaries.
const (
	freshnessFullWindow   = 60 * time.Minute
	freshnessHighWindow   = 180 * time.Minute
	freshnessMediumWindow = 720 * time.Minute
	freshnessLowWindow    = 1440 * time.Minute
)

// Freshness factors per step.
const (
	freshnessFull   = 1.0
	freshnessHigh   = 0.85
	freshnessMedium = 0.6
	freshnessLow    = 0.4
	freshnessStale  = 0.2
)

const maxSourceWeight = 100

// WeightLookup resolves a source weight on a 0..100 scale by domain.
type WeightLookup interface {
	WeightFor(ctx context.Context, domain string) (int, error)
}

// ScorerConfig carries the scoring thresholds.
type ScorerConfig struct {
	// BreakingThreshold is the minimum score for a breaking candidate.
	BreakingThreshold float64
	// MinConfidenceAutopublish additionally gates breaking candidates.
	MinConfidenceAutopublish float64
	// MaxBreakingAge disqualifies old clusters from breaking.
	MaxBreakingAge time.Duration
	// DigestMinScore is the minimum score for digest inclusion.
	DigestMinScore float64
	// Tier0Weight marks top-weight sources for downstream ops.
	Tier0Weight int
}

// Scorer assigns publish scores and candidate flags to clusters.
type Scorer struct {
	weights WeightLookup
	cfg     ScorerConfig
}

// NewScorer builds a Scorer over the given weight lookup.
func NewScorer(weights WeightLookup, cfg ScorerConfig) *Scorer {
	return &Scorer{weights: weights, cfg: cfg}
}

// Score computes weight×freshness for the cluster's canonical source.
func (s *Scorer) Score(ctx context.Context, c domain.Cluster, now time.Time) (domain.ModerationScore, error) {
	weight, err := s.weights.WeightFor(ctx, c.Canonical.Domain)
	if err != nil {
		return domain.ModerationScore{}, fmt.Errorf("weight for %s: %w", c.Canonical.Domain, err)
	}

	age := c.Age(now)
	freshness := freshnessFactor(age)

	score := float64(weight) * freshness
	confidence := float64(weight) / maxSourceWeight * freshness

	return domain.ModerationScore{
		Cluster:    c,
		Weight:     weight,
		Score:      score,
		Confidence: confidence,
		Tier0:      weight >= s.cfg.Tier0Weight,
		BreakingCandidate: score >= s.cfg.BreakingThreshold &&
			confidence >= s.cfg.MinConfidenceAutopublish &&
			age <= s.cfg.MaxBreakingAge,
		DigestCandidate: score >= s.cfg.DigestMinScore,
	}, nil
}

func freshnessFactor(age time.Duration) float64 {
	switch {
	case age <= freshnessFullWindow:
		return freshnessFull
	case age <= freshnessHighWindow:
		return freshnessHigh
	case age <= freshnessMediumWindow:
		return freshnessMedium
	case age <= freshnessLowWindow:
		return freshnessLow
	default:
		return freshnessStale
	}
}

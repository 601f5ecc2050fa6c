package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

type staticWeights map[string]int

func (w staticWeights) WeightFor(_ context.Context, domain string) (int, error) {
	if weight, ok := w[domain]; ok {
		return weight, nil
	}

	return 50, nil
}

func testScorerConfig() ScorerConfig {
	return ScorerConfig{
		BreakingThreshold:        70,
		MinConfidenceAutopublish: 0.6,
		MaxBreakingAge:           2 * time.Hour,
		DigestMinScore:           30,
		Tier0Weight:              85,
	}
}

func clusterAged(domain_ string, age time.Duration, now time.Time) domain.Cluster {
	canonical := domain.Article{ID: "a1", Domain: domain_, Title: "t", PublishedAt: now.Add(-age)}

	return domain.Cluster{
		Key:       "k1",
		Canonical: canonical,
		Members:   []domain.Article{canonical},
		CreatedAt: canonical.PublishedAt,
	}
}

func TestFreshnessFactorSteps(t *testing.T) {
	tests := []struct {
		age      time.Duration
		expected float64
	}{
		{age: 30 * time.Minute, expected: 1.0},
		{age: 60 * time.Minute, expected: 1.0},
		{age: 90 * time.Minute, expected: 0.85},
		{age: 6 * time.Hour, expected: 0.6},
		{age: 20 * time.Hour, expected: 0.4},
		{age: 48 * time.Hour, expected: 0.2},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, freshnessFactor(tt.age), 1e-9, "age %s", tt.age)
	}
}

func TestScoreFreshTopSource(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(staticWeights{"wire.example": 90}, testScorerConfig())

	score, err := scorer.Score(context.Background(), clusterAged("wire.example", 10*time.Minute, now), now)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, score.Score, 1e-9)
	assert.InDelta(t, 0.9, score.Confidence, 1e-9)
	assert.True(t, score.Tier0)
	assert.True(t, score.BreakingCandidate)
	assert.True(t, score.DigestCandidate)
}

func TestScoreOldClusterNotBreaking(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(staticWeights{"wire.example": 95}, testScorerConfig())

	// 2.5h old: score 95*0.6=57 < 70, and past MaxBreakingAge anyway.
	score, err := scorer.Score(context.Background(), clusterAged("wire.example", 150*time.Minute, now), now)
	require.NoError(t, err)

	assert.False(t, score.BreakingCandidate)
	assert.True(t, score.DigestCandidate)
}

func TestScoreLowWeightSourceDrops(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer(staticWeights{"blog.example": 20}, testScorerConfig())

	score, err := scorer.Score(context.Background(), clusterAged("blog.example", 48*time.Hour, now), now)
	require.NoError(t, err)

	assert.False(t, score.BreakingCandidate)
	assert.False(t, score.DigestCandidate)
	assert.False(t, score.Tier0)
	assert.InDelta(t, 4.0, score.Score, 1e-9)
}

func TestScoreBreakingNeedsConfidence(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := testScorerConfig()
	cfg.BreakingThreshold = 40

	scorer := NewScorer(staticWeights{"mid.example": 55}, cfg)

	// Score 55 passes the threshold but confidence 0.55 < 0.6.
	score, err := scorer.Score(context.Background(), clusterAged("mid.example", 10*time.Minute, now), now)
	require.NoError(t, err)

	assert.False(t, score.BreakingCandidate)
}

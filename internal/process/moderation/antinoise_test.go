package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	last      time.Time
	hasLast   bool
	count     int
	countedAt time.Time
}

func (h *fakeHistory) LastBreakingPublishedAt(_ context.Context) (time.Time, bool, error) {
	return h.last, h.hasLast, nil
}

func (h *fakeHistory) CountBreakingPublishedSince(_ context.Context, since time.Time) (int, error) {
	h.countedAt = since
	return h.count, nil
}

func TestAllowBreakingMinIntervalDenies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{last: now.Add(-10 * time.Minute), hasLast: true}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{
		MinIntervalBreaking: 30 * time.Minute,
		MaxPostsPerDay:      10,
	})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyReasonMinInterval, decision.Reason)
	assert.True(t, decision.NextAllowedAt.Equal(now.Add(20*time.Minute)))
}

func TestAllowBreakingDailyCapDenies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{count: 2}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{MaxPostsPerDay: 2})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyReasonDailyLimit, decision.Reason)
	assert.True(t, decision.NextAllowedAt.IsZero())
}

func TestAllowBreakingCountsFromLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 1, 30, 0, 0, time.UTC) // 02:30 Berlin
	history := &fakeHistory{count: 0}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{MaxPostsPerDay: 2, Timezone: loc})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	expectedMidnight := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	assert.True(t, history.countedAt.Equal(expectedMidnight))
}

func TestAllowBreakingIntervalCheckedBeforeDailyCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Both limits violated: the interval reason must win because it is
	// evaluated first and carries NextAllowedAt.
	history := &fakeHistory{last: now.Add(-5 * time.Minute), hasLast: true, count: 99}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{
		MinIntervalBreaking: 30 * time.Minute,
		MaxPostsPerDay:      2,
	})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, DenyReasonMinInterval, decision.Reason)
}

func TestAllowBreakingDisabledLimitsAllow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{last: now.Add(-time.Minute), hasLast: true, count: 99}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
}

func TestAllowBreakingNoHistoryAllows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{}

	policy := NewAntiNoisePolicy(history, AntiNoisePolicyConfig{
		MinIntervalBreaking: 30 * time.Minute,
		MaxPostsPerDay:      5,
	})

	decision, err := policy.AllowBreaking(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
}

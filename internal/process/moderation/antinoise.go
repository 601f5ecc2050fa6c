package moderation

import (
	"context"
	"fmt"
	"time"
)

// DenyReason explains why a breaking post was not admitted.
type DenyReason string

// Denial reasons.
const (
	DenyReasonMinInterval DenyReason = "min_interval"
	DenyReasonDailyLimit  DenyReason = "daily_limit"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// NextAllowedAt is set only for MinInterval denials.
	NextAllowedAt time.Time
}

// BreakingHistory exposes read-only queries over already-published
// breaking posts.
type BreakingHistory interface {
	LastBreakingPublishedAt(ctx context.Context) (time.Time, bool, error)
	CountBreakingPublishedSince(ctx context.Context, since time.Time) (int, error)
}

// AntiNoisePolicyConfig carries the admission limits. A zero value for
// either limit disables that check.
type AntiNoisePolicyConfig struct {
	MinIntervalBreaking time.Duration
	MaxPostsPerDay      int
	Timezone            *time.Location
}

// AntiNoisePolicy rate-limits breaking publishes against a minimum
// inter-post interval and a daily cap counted from local midnight.
type AntiNoisePolicy struct {
	history BreakingHistory
	cfg     AntiNoisePolicyConfig
}

// NewAntiNoisePolicy builds the policy; a nil timezone defaults to UTC.
func NewAntiNoisePolicy(history BreakingHistory, cfg AntiNoisePolicyConfig) *AntiNoisePolicy {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}

	return &AntiNoisePolicy{history: history, cfg: cfg}
}

// AllowBreaking checks the interval limit first, then the daily cap.
// The ordering is part of the contract: an interval denial carries
// NextAllowedAt, which the daily cap cannot provide.
func (p *AntiNoisePolicy) AllowBreaking(ctx context.Context, now time.Time) (Decision, error) {
	if p.cfg.MinIntervalBreaking > 0 {
		lastPublished, ok, err := p.history.LastBreakingPublishedAt(ctx)
		if err != nil {
			return Decision{}, fmt.Errorf("last breaking published at: %w", err)
		}

		if ok {
			nextAllowed := lastPublished.Add(p.cfg.MinIntervalBreaking)
			if nextAllowed.After(now) {
				return Decision{Reason: DenyReasonMinInterval, NextAllowedAt: nextAllowed}, nil
			}
		}
	}

	if p.cfg.MaxPostsPerDay > 0 {
		count, err := p.history.CountBreakingPublishedSince(ctx, localMidnight(now, p.cfg.Timezone))
		if err != nil {
			return Decision{}, fmt.Errorf("count breaking published since midnight: %w", err)
		}

		if count >= p.cfg.MaxPostsPerDay {
			return Decision{Reason: DenyReasonDailyLimit}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

func localMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

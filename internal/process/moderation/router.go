package moderation

import "github.com/feedwire/newswire-bot/internal/core/domain"

// Route maps a moderation score to a publish surface. Breaking beats
// digest; anything else goes to review when enabled, otherwise drops.
func Route(score domain.ModerationScore, reviewEnabled bool) domain.Route {
	switch {
	case score.BreakingCandidate:
		return domain.RoutePublishNow
	case score.DigestCandidate:
		return domain.RouteDigest
	case reviewEnabled:
		return domain.RouteReview
	default:
		return domain.RouteDrop
	}
}

package publish

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

// TelegramPublisher posts rendered digests and breaking items to the
// target chat and review prompts to an optional review chat, throttled
// by a shared rate limiter.
type TelegramPublisher struct {
	api          *tgbotapi.BotAPI
	chatID       int64
	reviewChatID int64
	limiter      *rate.Limiter
	logger       *zerolog.Logger
}

// NewTelegramPublisher authenticates against the Bot API. A zero
// reviewChatID disables review notifications.
func NewTelegramPublisher(token string, chatID, reviewChatID int64, rps float64, burst int, logger *zerolog.Logger) (*TelegramPublisher, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	if burst < 1 {
		burst = 1
	}

	return &TelegramPublisher{
		api:          api,
		chatID:       chatID,
		reviewChatID: reviewChatID,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		logger:       logger,
	}, nil
}

// PublishDigest sends the rendered digest as one message. An empty digest
// is reported as skipped, not an error.
func (p *TelegramPublisher) PublishDigest(ctx context.Context, digest Digest) (domain.PublishOutcome, error) {
	text := RenderDigest(digest)
	if text == "" {
		p.logger.Info().Msg("digest empty, skipping publish")

		return domain.OutcomeSkipped, nil
	}

	if err := p.send(ctx, text); err != nil {
		return domain.OutcomeFailed, err
	}

	p.logger.Info().Int("items", len(digest.Items)).Msg("digest published")

	return domain.OutcomeCreated, nil
}

// PublishBreaking sends a single breaking post.
func (p *TelegramPublisher) PublishBreaking(ctx context.Context, item ClusterPayload) (domain.PublishOutcome, error) {
	if err := p.send(ctx, RenderBreaking(item)); err != nil {
		return domain.OutcomeFailed, err
	}

	p.logger.Info().Str("cluster", item.ClusterKey).Msg("breaking post published")

	return domain.OutcomeCreated, nil
}

// PublishReview sends a moderation prompt to the review chat. Without a
// configured review chat the item is reported as skipped.
func (p *TelegramPublisher) PublishReview(ctx context.Context, item ClusterPayload) (domain.PublishOutcome, error) {
	if p.reviewChatID == 0 {
		p.logger.Debug().Str("cluster", item.ClusterKey).Msg("no review chat configured, skipping review prompt")

		return domain.OutcomeSkipped, nil
	}

	if err := p.sendTo(ctx, p.reviewChatID, RenderReview(item)); err != nil {
		return domain.OutcomeFailed, err
	}

	p.logger.Info().Str("cluster", item.ClusterKey).Msg("review prompt sent")

	return domain.OutcomeCreated, nil
}

func (p *TelegramPublisher) send(ctx context.Context, text string) error {
	return p.sendTo(ctx, p.chatID, text)
}

func (p *TelegramPublisher) sendTo(ctx context.Context, chatID int64, text string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

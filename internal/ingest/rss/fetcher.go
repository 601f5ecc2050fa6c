// Package rss fetches feed entries and converts them into articles.
package rss

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/feedwire/newswire-bot/internal/core/domain"
)

// tickerPrefix marks feed categories that carry a stock ticker.
const tickerPrefix = "$"

// Fetcher downloads RSS/Atom feeds and maps entries to domain articles.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewFetcher creates a feed fetcher. A non-positive timeout disables the
// per-fetch deadline.
func NewFetcher(timeout time.Duration, logger *zerolog.Logger) *Fetcher {
	return &Fetcher{
		parser:  gofeed.NewParser(),
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch downloads one feed and returns its entries as articles. Entries
// without a usable link or title are skipped with a warning.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]domain.Article, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	articles := make([]domain.Article, 0, len(feed.Items))

	for _, item := range feed.Items {
		article, ok := f.toArticle(item, feed.Language)
		if !ok {
			f.logger.Warn().Str("feed", feedURL).Str("title", item.Title).Msg("skipping feed entry without link or title")

			continue
		}

		articles = append(articles, article)
	}

	return articles, nil
}

func (f *Fetcher) toArticle(item *gofeed.Item, feedLanguage string) (domain.Article, bool) {
	link := strings.TrimSpace(item.Link)
	title := strings.TrimSpace(item.Title)

	if link == "" || title == "" {
		return domain.Article{}, false
	}

	host := hostOf(link)
	if host == "" {
		return domain.Article{}, false
	}

	entities, tickers := splitCategories(item.Categories)

	return domain.Article{
		ID:          articleID(item, link),
		URL:         link,
		Domain:      host,
		Title:       title,
		Summary:     strings.TrimSpace(item.Description),
		PublishedAt: publishedAt(item),
		Language:    strings.ToLower(strings.TrimSpace(feedLanguage)),
		Entities:    entities,
		Tickers:     tickers,
	}, true
}

// articleID prefers the feed GUID and falls back to the link.
func articleID(item *gofeed.Item, link string) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}

	return link
}

func hostOf(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// publishedAt resolves the entry timestamp: parsed pubdate first, then a
// lenient reparse of the raw string, then time.Now as a last resort.
func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}

	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}

	for _, raw := range []string{item.Published, item.Updated} {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}

	return time.Now().UTC()
}

// splitCategories separates ticker categories ($NVDA) from plain entities.
func splitCategories(categories []string) (entities, tickers []string) {
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}

		if strings.HasPrefix(category, tickerPrefix) {
			ticker := strings.TrimPrefix(category, tickerPrefix)
			if ticker != "" {
				tickers = append(tickers, ticker)
			}

			continue
		}

		entities = append(entities, category)
	}

	return entities, tickers
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string   `env:"APP_ENV" envDefault:"local"`
	PostgresDSN  string   `env:"POSTGRES_DSN,required"`
	BotToken     string   `env:"BOT_TOKEN,required"`
	TargetChatID int64    `env:"TARGET_CHAT_ID,required"`
	ReviewChatID int64    `env:"REVIEW_CHAT_ID"`
	FeedURLs     []string `env:"FEED_URLS,required" envSeparator:","`
	HealthPort   int      `env:"HEALTH_PORT" envDefault:"8080"`

	// SourceWeights seeds the weight table at startup, entries as
	// domain:weight pairs, e.g. "reuters.com:90,blog.example.com:20".
	SourceWeights []string `env:"SOURCE_WEIGHTS" envSeparator:","`

	// Scoring and routing
	BreakingThreshold        float64       `env:"BREAKING_THRESHOLD" envDefault:"70"`
	MinConfidenceAutopublish float64       `env:"MIN_CONFIDENCE_AUTOPUBLISH" envDefault:"0.6"`
	MaxBreakingAge           time.Duration `env:"MAX_BREAKING_AGE" envDefault:"2h"`
	DigestMinScore           float64       `env:"DIGEST_MIN_SCORE" envDefault:"30"`
	Tier0Weight              int           `env:"TIER0_WEIGHT" envDefault:"85"`
	ReviewEnabled            bool          `env:"REVIEW_ENABLED" envDefault:"false"`

	// Anti-noise policy
	MinIntervalBreakingMinutes int    `env:"MIN_INTERVAL_BREAKING_MINUTES" envDefault:"30"`
	MaxPostsPerDay             int    `env:"MAX_POSTS_PER_DAY" envDefault:"10"`
	Timezone                   string `env:"TIMEZONE" envDefault:"UTC"`

	// Digest scheduling
	DigestSlots         []string      `env:"DIGEST_SLOTS" envSeparator:"," envDefault:"09:00,18:00"`
	DigestFallbackDelay time.Duration `env:"DIGEST_FALLBACK_DELAY" envDefault:"30m"`

	// Workers
	PipelineInterval  time.Duration `env:"PIPELINE_INTERVAL" envDefault:"5m"`
	FeedFetchTimeout  time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`
	ClaimLimit        int           `env:"CLAIM_LIMIT" envDefault:"50"`
	ProcessingTimeout time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"15m"`

	// Telegram rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// MinIntervalBreaking returns the minimum gap between breaking posts.
func (c *Config) MinIntervalBreaking() time.Duration {
	return time.Duration(c.MinIntervalBreakingMinutes) * time.Minute
}

// SourceWeightPairs parses SourceWeights into domain to weight pairs.
func (c *Config) SourceWeightPairs() (map[string]int, error) {
	pairs := make(map[string]int, len(c.SourceWeights))

	for _, entry := range c.SourceWeights {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, value, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("source weight entry %q: want domain:weight", entry)
		}

		weight, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("source weight entry %q: %w", entry, err)
		}

		pairs[strings.ToLower(strings.TrimSpace(name))] = weight
	}

	return pairs, nil
}

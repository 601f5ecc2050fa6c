package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedwire/newswire-bot/internal/app"
	"github.com/feedwire/newswire-bot/internal/platform/config"
	db "github.com/feedwire/newswire-bot/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "service mode: pipeline or digest")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	if err := run(cfg, &logger, *mode, *once); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger, mode string, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	application := app.New(cfg, database, logger)

	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	switch mode {
	case "pipeline":
		return application.RunPipeline(ctx, once)
	case "digest":
		return application.RunDigest(ctx, once)
	default:
		return fmt.Errorf("unknown mode %q, want pipeline or digest", mode)
	}
}

func newLogger(appEnv string) zerolog.Logger {
	var out zerolog.LevelWriter

	if appEnv == "local" {
		out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.MultiLevelWriter(os.Stderr)
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

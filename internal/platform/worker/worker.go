// Package worker provides the shared background-loop plumbing for the
// ingest pipeline and the digest publisher: a poll loop with periodic
// maintenance tasks, cancellation-aware waits, and panic recovery.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ProcessFunc does one unit of work per loop iteration. It should return
// quickly when there is nothing to do.
type ProcessFunc func(ctx context.Context) error

// PeriodicTask runs alongside the main loop at its own interval.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Config describes one worker loop.
type Config struct {
	// Name identifies the worker in log output.
	Name string

	// PollInterval is the sleep between iterations.
	PollInterval time.Duration

	// Process does the main work each iteration.
	Process ProcessFunc

	// PeriodicTasks run when their interval has elapsed, checked once
	// per iteration.
	PeriodicTasks []PeriodicTask

	// OnStart runs once before the first iteration.
	OnStart func(ctx context.Context)

	// OnStop runs once after the loop exits.
	OnStop func()

	// OnError decides whether a Process error is fatal. Returning false
	// stops the loop with that error; nil OnError logs and continues.
	OnError func(err error) bool

	Logger *zerolog.Logger
}

// Loop runs the worker until the context is canceled or OnError declares
// an error fatal. The returned error wraps ctx.Err() on cancellation.
func Loop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)

	logger.Info().Str("worker", cfg.Name).Msg("starting worker loop")

	if cfg.OnStart != nil {
		cfg.OnStart(ctx)
	}

	defer func() {
		if cfg.OnStop != nil {
			cfg.OnStop()
		}

		logger.Info().Str("worker", cfg.Name).Msg("worker loop stopped")
	}()

	lastRun := make([]time.Time, len(cfg.PeriodicTasks))

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("worker loop %s: %w", cfg.Name, ctx.Err())
		default:
		}

		for i, task := range cfg.PeriodicTasks {
			if task.Interval <= 0 || task.Run == nil {
				continue
			}

			if time.Since(lastRun[i]) >= task.Interval {
				logger.Debug().Str("task", task.Name).Msg("running periodic task")
				task.Run(ctx)
				lastRun[i] = time.Now()
			}
		}

		if err := step(ctx, cfg, logger); err != nil {
			return err
		}

		if err := Wait(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func step(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Process == nil {
		return nil
	}

	err := cfg.Process(ctx)
	if err == nil {
		return nil
	}

	if cfg.OnError != nil {
		if cfg.OnError(err) {
			return nil
		}

		return err
	}

	logger.Error().Err(err).Str("worker", cfg.Name).Msg("process error")

	return nil
}

// Wait sleeps for d or until the context is canceled, whichever comes
// first. Non-positive durations return immediately.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// WaitUntil sleeps until t or until the context is canceled. Times in
// the past return immediately.
func WaitUntil(ctx context.Context, t time.Time) error {
	return Wait(ctx, time.Until(t))
}

// RunWithTimeout runs fn under a child context that is canceled after
// timeout.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic logs a recovered panic. Use in a defer around work that
// must not take the whole process down.
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}

package reconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrMaxRetries is returned when the session kept failing.
var ErrMaxRetries = errors.New("reconnect: max retries exceeded")

// Config contains configuration for exponential backoff restarts
type Config struct {
	MaxRetries    int           // consecutive failures tolerated (default: 5)
	RetryDelay    time.Duration // initial delay (default: 1s)
	MaxRetryDelay time.Duration // delay cap (default: 30s)
}

// DefaultConfig returns the default restart policy
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// State tracks restart attempts across runs
type State struct {
	CurrentRetries int
	Restarts       atomic.Uint32 // total restarts
}

// Session runs one device session until it fails or ctx ends.
//
// The session calls ready once it is delivering; that resets the consecutive
// failure count, so a sensor that works for hours and then drops gets a
// fresh retry budget.
type Session func(ctx context.Context, ready func()) error

// Run executes session, restarting it with exponential backoff on failure.
//
// A session that returns nil ends Run with nil. Cancellation of ctx ends Run
// with ctx.Err().
//
// Backoff schedule with the default config: 1s, 2s, 4s, 8s, 16s, then stop.
func Run(ctx context.Context, session Session, cfg Config, state *State) error {
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("reconnect: context cancelled, stopping")
			return err
		}

		err := session(ctx, func() {
			if state.CurrentRetries > 0 {
				slog.Info("reconnect: session recovered", "after_retries", state.CurrentRetries)
			}
			state.CurrentRetries = 0
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Error("reconnect: session failed", "error", err)

		state.CurrentRetries++
		state.Restarts.Add(1)

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("%w (%d attempts): %w", ErrMaxRetries, cfg.MaxRetries, err)
		}

		delay := Backoff(state.CurrentRetries, cfg)
		slog.Warn("reconnect: restarting session",
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Info("reconnect: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// Backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

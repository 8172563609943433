package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-depth/modules/framestream"
)

var (
	// ErrNotEnoughFrames is returned when fewer than 2 values arrived.
	ErrNotEnoughFrames = errors.New("warmup: not enough frames")

	// ErrUnstable is returned together with the measured stats when the rate
	// is outside the stability thresholds.
	ErrUnstable = errors.New("warmup: stream rate unstable")
)

// Measure subscribes to src for duration and reports its delivery rate.
//
// stamp extracts the time of each value (typically the device timestamp of
// the composite). The subscription is disposed before Measure returns.
// An unstable stream returns its stats together with ErrUnstable so the
// caller can decide whether to proceed.
func Measure[T any](
	ctx context.Context,
	src framestream.Stream[T],
	stamp func(T) time.Time,
	duration time.Duration,
) (Stats, error) {
	slog.Info("warmup: measuring fused stream", "duration", duration)

	ch := framestream.ToChannel(src, 64)
	defer ch.Close()

	times := make([]time.Time, 0, 128)
	started := time.Now()

	wctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

loop:
	for {
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return Stats{}, fmt.Errorf("warmup: %w", ctx.Err())
			}
			break loop
		case v, ok := <-ch.C():
			if !ok {
				err := ch.Err()
				if err == nil {
					err = framestream.ErrCompleted
				}
				return Stats{}, fmt.Errorf("warmup: stream ended during warm-up: %w", err)
			}
			times = append(times, stamp(v))
		}
	}

	if len(times) < 2 {
		return Stats{}, fmt.Errorf("%w: got %d, need at least 2", ErrNotEnoughFrames, len(times))
	}

	// The window is the span the device clock covered plus one mean interval,
	// so n values over it give the true rate.
	span := times[len(times)-1].Sub(times[0])
	window := span + span/time.Duration(len(times)-1)
	if window <= 0 {
		window = time.Since(started)
	}
	stats := Calculate(times, window)

	slog.Info("warmup: complete",
		"received", stats.Received,
		"dropped_in_channel", ch.Stats().Dropped,
		"rate_mean", fmt.Sprintf("%.2f", stats.RateMean),
		"rate_stddev", fmt.Sprintf("%.2f", stats.RateStdDev),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return stats, fmt.Errorf("%w (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs)",
			ErrUnstable, stats.RateMean, stats.RateStdDev, stats.JitterMean)
	}
	return stats, nil
}

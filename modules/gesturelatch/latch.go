// Package gesturelatch turns transient grip and release events into a
// continuous "held" signal per (user, hand).
//
// The interaction processor reports Grip on the frame the hand closes and
// GripRelease on the frame it opens; in between it reports nothing. The
// latch rewrites those in-between frames to Grip so consumers can treat the
// event as a level instead of an edge.
//
// Each subscription owns its own Table; two subscribers of the same stream
// never share latch state.
package gesturelatch

import (
	"errors"
	"log/slog"

	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/interaction"
)

var (
	// ErrNilSource is returned when the source stream is zero.
	ErrNilSource = errors.New("gesturelatch: source stream is nil")

	// ErrTableInUse is delivered when a Table passed with WithTable is
	// already bound to another subscription.
	ErrTableInUse = errors.New("gesturelatch: table already bound to a subscription")
)

type config struct {
	evictAfter int
	table      *Table
}

// Option configures ContinuousGrippedState.
type Option func(*config)

// WithEvictAfter releases the latches of a user whose tracking id was absent
// for n consecutive ticks. n <= 0 disables eviction (the default): a latch
// then lives until its GripRelease arrives.
func WithEvictAfter(n int) Option {
	return func(c *config) {
		c.evictAfter = n
	}
}

// WithTable makes the subscription use t, so the caller can observe it.
// A table serves exactly one subscription.
func WithTable(t *Table) Option {
	return func(c *config) {
		c.table = t
	}
}

// ContinuousGrippedState rewrites the hand events of every tick so that a
// gripped hand reports Grip on every tick until its GripRelease.
//
// Records are mutated in place and forwarded unchanged in count and order.
func ContinuousGrippedState(
	src framestream.Stream[[]interaction.UserInfo],
	opts ...Option,
) (framestream.Stream[[]interaction.UserInfo], error) {
	if src.IsZero() {
		return framestream.Stream[[]interaction.UserInfo]{}, ErrNilSource
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	return framestream.New(func(o framestream.Observer[[]interaction.UserInfo]) framestream.Subscription {
		table := cfg.table
		if table == nil {
			table = NewTable()
		}
		if !table.claim() {
			o.OnError(ErrTableInUse)
			return framestream.Nop
		}

		return src.Subscribe(framestream.Funcs[[]interaction.UserInfo]{
			Next: func(users []interaction.UserInfo) {
				if n := table.Apply(users, cfg.evictAfter); n > 0 {
					slog.Debug("gesturelatch: evicted stale latches",
						"evicted", n,
						"latched", table.Len(),
					)
				}
				o.OnNext(users)
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		})
	}), nil
}

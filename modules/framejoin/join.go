// Package framejoin pairs the latest values of two independently clocked
// streams, optionally rejecting pairs whose arrival times are too far apart.
//
// Both sides are usually delivered on different producer goroutines; the join
// serializes them with a mutex and emits inline on whichever goroutine
// delivered the triggering value.
//
//	hands, _ := gesturelatch.ContinuousGrippedState(bridge.Stream())
//	joined, err := framejoin.CombineLatestWithExpiry(hands, skeletons,
//	    func(u []interaction.UserInfo, s []sensor.Skeleton) Snapshot { ... },
//	    200*time.Millisecond,
//	)
package framejoin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-depth/modules/framestream"
)

var (
	// ErrNilSource is returned when either side of a join is a zero stream.
	ErrNilSource = errors.New("framejoin: source stream is nil")

	// ErrNilCombine is returned when the combine function is nil.
	ErrNilCombine = errors.New("framejoin: combine function is nil")

	// ErrInvalidTolerance is returned for a non-positive tolerance.
	ErrInvalidTolerance = errors.New("framejoin: tolerance must be positive")
)

// Clock is the time source used to stamp arrivals.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// WallClock stamps with time.Now.
var WallClock Clock = ClockFunc(time.Now)

// Timestamped is a value paired with the instant it was observed.
type Timestamped[T any] struct {
	Value T
	Time  time.Time
}

// Timestamp stamps every value of src with clock.Now() on arrival.
// A nil clock means WallClock.
func Timestamp[T any](src framestream.Stream[T], clock Clock) framestream.Stream[Timestamped[T]] {
	if clock == nil {
		clock = WallClock
	}
	return framestream.Map(src, func(v T) Timestamped[T] {
		return Timestamped[T]{Value: v, Time: clock.Now()}
	})
}

// Stats is a snapshot of a join's counters.
type Stats struct {
	Left    uint64
	Right   uint64
	Emitted uint64

	// Stale counts pairs rejected because they were tolerance or more apart.
	Stale uint64
}

// Counters accumulates join activity across every subscription of the
// streams it was passed to. The zero value is ready to use.
type Counters struct {
	left    atomic.Uint64
	right   atomic.Uint64
	emitted atomic.Uint64
	stale   atomic.Uint64
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Left:    c.left.Load(),
		Right:   c.right.Load(),
		Emitted: c.emitted.Load(),
		Stale:   c.stale.Load(),
	}
}

type options struct {
	clock    Clock
	counters *Counters
}

// Option configures a join.
type Option func(*options)

// WithClock sets the arrival clock (default WallClock).
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithCounters records join activity into c.
func WithCounters(c *Counters) Option {
	return func(o *options) {
		o.counters = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: WallClock, counters: &Counters{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CombineLatestWithExpiry emits combine(l, r) for the latest pair whenever
// either side emits, provided both sides have emitted at least once and their
// arrival times differ by strictly less than tolerance. Stale pairs are
// dropped silently.
//
// An error on either side terminates the joined stream and disposes both
// sides. The joined stream completes once both sides have completed.
func CombineLatestWithExpiry[L, R, O any](
	left framestream.Stream[L],
	right framestream.Stream[R],
	combine func(L, R) O,
	tolerance time.Duration,
	opts ...Option,
) (framestream.Stream[O], error) {
	o := buildOptions(opts)
	if left.IsZero() || right.IsZero() {
		return framestream.Stream[O]{}, ErrNilSource
	}

	return JoinTimestamped(Timestamp(left, o.clock), Timestamp(right, o.clock), combine, tolerance, opts...)
}

// JoinTimestamped is CombineLatestWithExpiry over values that already carry
// their own time, e.g. device frame timestamps instead of arrival times.
func JoinTimestamped[L, R, O any](
	left framestream.Stream[Timestamped[L]],
	right framestream.Stream[Timestamped[R]],
	combine func(L, R) O,
	tolerance time.Duration,
	opts ...Option,
) (framestream.Stream[O], error) {
	if left.IsZero() || right.IsZero() {
		return framestream.Stream[O]{}, ErrNilSource
	}
	if combine == nil {
		return framestream.Stream[O]{}, ErrNilCombine
	}
	if tolerance <= 0 {
		return framestream.Stream[O]{}, fmt.Errorf("%w: got %s", ErrInvalidTolerance, tolerance)
	}

	o := buildOptions(opts)
	fresh := func(l Timestamped[L], r Timestamped[R]) bool {
		d := l.Time.Sub(r.Time)
		if d < 0 {
			d = -d
		}
		return d < tolerance
	}

	return join(left, right, func(l Timestamped[L], r Timestamped[R]) O {
		return combine(l.Value, r.Value)
	}, fresh, o.counters), nil
}

// CombineLatest emits combine(l, r) for the latest pair whenever either side
// emits, once both sides have emitted. No expiry is applied.
func CombineLatest[L, R, O any](
	left framestream.Stream[L],
	right framestream.Stream[R],
	combine func(L, R) O,
	opts ...Option,
) (framestream.Stream[O], error) {
	if left.IsZero() || right.IsZero() {
		return framestream.Stream[O]{}, ErrNilSource
	}
	if combine == nil {
		return framestream.Stream[O]{}, ErrNilCombine
	}

	o := buildOptions(opts)
	return join(left, right, combine, nil, o.counters), nil
}

// pairState is the per-subscription latest-pair state.
type pairState[L, R any] struct {
	mu        sync.Mutex
	left      L
	right     R
	hasLeft   bool
	hasRight  bool
	completed int
}

func join[L, R, O any](
	left framestream.Stream[L],
	right framestream.Stream[R],
	combine func(L, R) O,
	accept func(L, R) bool,
	c *Counters,
) framestream.Stream[O] {
	return framestream.New(func(obs framestream.Observer[O]) framestream.Subscription {
		st := &pairState[L, R]{}

		// emit runs with st.mu held so downstream sees serialized calls.
		emit := func() {
			if !st.hasLeft || !st.hasRight {
				return
			}
			if accept != nil && !accept(st.left, st.right) {
				c.stale.Add(1)
				slog.Debug("framejoin: stale pair dropped", "stale_total", c.stale.Load())
				return
			}
			c.emitted.Add(1)
			obs.OnNext(combine(st.left, st.right))
		}

		complete := func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			st.completed++
			if st.completed == 2 {
				obs.OnCompleted()
			}
		}

		fail := func(err error) {
			st.mu.Lock()
			defer st.mu.Unlock()
			obs.OnError(err)
		}

		leftSub := left.Subscribe(framestream.Funcs[L]{
			Next: func(v L) {
				c.left.Add(1)
				st.mu.Lock()
				defer st.mu.Unlock()
				st.left, st.hasLeft = v, true
				emit()
			},
			Error:     fail,
			Completed: complete,
		})

		rightSub := right.Subscribe(framestream.Funcs[R]{
			Next: func(v R) {
				c.right.Add(1)
				st.mu.Lock()
				defer st.mu.Unlock()
				st.right, st.hasRight = v, true
				emit()
			},
			Error:     fail,
			Completed: complete,
		})

		return framestream.Once(func() {
			leftSub.Dispose()
			rightSub.Dispose()
		})
	})
}

package framestream

import (
	"context"
	"sync"
	"time"
)

// MailboxStats is a snapshot of a Mailbox.
type MailboxStats struct {
	// Consumed is the number of values returned by Read/TryRead.
	Consumed uint64

	// Overwritten counts values replaced before anyone read them.
	Overwritten uint64

	// ConsecutiveOverwrites is the current streak of unread overwrites.
	// Resets to 0 on every successful read.
	ConsecutiveOverwrites uint64

	// LastConsumedAt is when a value was last read.
	LastConsumedAt time.Time
}

// Mailbox holds the latest value of a Stream (DropOld policy).
//
// Architecture:
//   - Single-slot buffer, overwrite on publish
//   - Blocking consume (sync.Cond.Wait) from one consumer goroutine
//   - Producer side never blocks
type Mailbox[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value T
	full  bool

	closed bool
	done   bool
	err    error

	consumed              uint64
	overwritten           uint64
	consecutiveOverwrites uint64
	lastConsumedAt        time.Time

	sub Subscription
}

// Latest subscribes to src and returns a mailbox holding its newest value.
func Latest[T any](src Stream[T]) *Mailbox[T] {
	m := &Mailbox[T]{lastConsumedAt: time.Now()}
	m.cond = sync.NewCond(&m.mu)
	m.sub = src.Subscribe(Funcs[T]{
		Next:      m.publish,
		Error:     m.terminate,
		Completed: func() { m.terminate(nil) },
	})
	return m
}

func (m *Mailbox[T]) publish(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.done {
		return
	}

	if m.full {
		m.overwritten++
		m.consecutiveOverwrites++
	}

	m.value = v
	m.full = true
	m.cond.Signal()
}

func (m *Mailbox[T]) terminate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return
	}
	m.done = true
	m.err = err
	m.cond.Broadcast()
}

// Read blocks until a value is available and consumes it.
//
// Returns ErrClosed after Close, the stream's error after a failure, or
// ErrCompleted after completion once the pending value was read. A cancelled
// ctx returns ctx.Err().
func (m *Mailbox[T]) Read(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.full && !m.closed && !m.done && ctx.Err() == nil {
		m.cond.Wait()
	}

	var zero T
	switch {
	case m.closed:
		return zero, ErrClosed
	case m.full:
		return m.take(), nil
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case m.err != nil:
		return zero, m.err
	default:
		return zero, ErrCompleted
	}
}

// TryRead consumes the pending value without blocking.
func (m *Mailbox[T]) TryRead() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.closed || !m.full {
		return zero, false
	}
	return m.take(), true
}

// take must be called with mu held and full set.
func (m *Mailbox[T]) take() T {
	v := m.value
	var zero T
	m.value = zero
	m.full = false
	m.consumed++
	m.consecutiveOverwrites = 0
	m.lastConsumedAt = time.Now()
	return v
}

// Stats returns a snapshot of the mailbox counters.
func (m *Mailbox[T]) Stats() MailboxStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MailboxStats{
		Consumed:              m.consumed,
		Overwritten:           m.overwritten,
		ConsecutiveOverwrites: m.consecutiveOverwrites,
		LastConsumedAt:        m.lastConsumedAt,
	}
}

// Close disposes the subscription and wakes a blocked Read. Idempotent.
func (m *Mailbox[T]) Close() {
	m.sub.Dispose()

	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

package framestream

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by bridges after Close.
	ErrClosed = errors.New("framestream: closed")

	// ErrCompleted is returned by Mailbox.Read once the stream completed
	// and the last value was consumed.
	ErrCompleted = errors.New("framestream: stream completed")
)

// ChannelStats is a snapshot of a Channel bridge.
type ChannelStats struct {
	// Sent is the number of values handed to the channel.
	Sent uint64

	// Dropped is the number of values discarded because the buffer was full.
	Dropped uint64
}

// Channel delivers a Stream into a bounded Go channel with DropNew policy:
// when the buffer is full the incoming value is dropped, never queued, and
// the producer never blocks.
type Channel[T any] struct {
	ch  chan T
	sub Subscription

	mu     sync.RWMutex
	closed bool
	err    error

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// ToChannel subscribes to src and returns the channel bridge.
// buffer < 1 is treated as 1.
func ToChannel[T any](src Stream[T], buffer int) *Channel[T] {
	if buffer < 1 {
		buffer = 1
	}

	c := &Channel[T]{ch: make(chan T, buffer)}
	c.sub = src.Subscribe(Funcs[T]{
		Next:      c.publish,
		Error:     c.finish,
		Completed: func() { c.finish(nil) },
	})
	return c
}

// C returns the receive side. It is closed when the stream terminates or
// Close is called.
func (c *Channel[T]) C() <-chan T {
	return c.ch
}

// Err returns the terminal error, if the stream failed.
func (c *Channel[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Stats returns a snapshot of the bridge counters.
func (c *Channel[T]) Stats() ChannelStats {
	return ChannelStats{
		Sent:    c.sent.Load(),
		Dropped: c.dropped.Load(),
	}
}

// Close disposes the subscription and closes the channel. Idempotent.
func (c *Channel[T]) Close() {
	c.sub.Dispose()
	c.finish(ErrClosed)
}

func (c *Channel[T]) publish(v T) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.ch <- v:
		c.sent.Add(1)
	default:
		c.dropped.Add(1)
	}
}

func (c *Channel[T]) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if !errors.Is(err, ErrClosed) {
		c.err = err
	}
	close(c.ch)
}

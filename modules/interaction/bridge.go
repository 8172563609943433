package interaction

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-depth/modules/framefusion"
	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

type bridgeState int

const (
	stateIdle bridgeState = iota
	stateActive
	stateClosed
)

// BridgeStats is a snapshot of a Bridge's counters.
type BridgeStats struct {
	Fed        uint64 // composites pushed into the processor
	FeedErrors uint64
	Emitted    uint64 // interaction frames republished
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithFuser makes the bridge account its feed in f (default: a private Fuser).
func WithFuser(f *framefusion.Fuser) BridgeOption {
	return func(b *Bridge) {
		if f != nil {
			b.fuser = f
		}
	}
}

// Bridge owns the lifetime of an interaction processor: it feeds the fused
// skeleton and depth of every tick into the processor and republishes the
// processor's user info as one stream.
//
// A Bridge supports a single subscription. Disposing it releases the feed,
// then the output registration, then the processor itself.
type Bridge struct {
	dev   sensor.Device
	proc  Processor
	fuser *framefusion.Fuser

	mu    sync.Mutex
	state bridgeState

	fed        atomic.Uint64
	feedErrors atomic.Uint64
	emitted    atomic.Uint64
}

// NewBridge validates the collaborators and returns an idle Bridge.
func NewBridge(dev sensor.Device, proc Processor, opts ...BridgeOption) (*Bridge, error) {
	if dev == nil {
		return nil, fmt.Errorf("interaction: new bridge: %w", sensor.ErrNilDevice)
	}
	if proc == nil {
		return nil, fmt.Errorf("interaction: new bridge: %w", ErrNilProcessor)
	}

	b := &Bridge{
		dev:   dev,
		proc:  proc,
		fuser: framefusion.New(framefusion.WithTraceIDs(false)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{
		Fed:        b.fed.Load(),
		FeedErrors: b.feedErrors.Load(),
		Emitted:    b.emitted.Load(),
	}
}

// Stream returns the user info stream. Subscribing activates the bridge.
func (b *Bridge) Stream() framestream.Stream[[]UserInfo] {
	return framestream.New(b.activate)
}

func (b *Bridge) activate(o framestream.Observer[[]UserInfo]) framestream.Subscription {
	b.mu.Lock()
	switch b.state {
	case stateActive:
		b.mu.Unlock()
		o.OnError(ErrBridgeActive)
		return framestream.Nop
	case stateClosed:
		b.mu.Unlock()
		o.OnError(ErrBridgeClosed)
		return framestream.Nop
	}
	b.state = stateActive
	b.mu.Unlock()

	a := &activation{bridge: b, observer: o}

	// Output first, so no result raised by the first push is missed.
	a.output = b.subscribeOutput(a)
	if !a.failed.Load() {
		a.feed = b.subscribeFeed(a)
	}

	slog.Info("interaction: bridge activated", "failed", a.failed.Load())
	return framestream.Once(a.teardown)
}

func (b *Bridge) subscribeOutput(a *activation) framestream.Subscription {
	ready, err := FrameReadyStream(b.proc)
	if err == nil {
		var users framestream.Stream[[]UserInfo]
		users, err = SelectUserInfo(ready)
		if err == nil {
			return users.Subscribe(framestream.Funcs[[]UserInfo]{
				Next: func(u []UserInfo) {
					b.emitted.Add(1)
					a.observer.OnNext(u)
				},
				Error:     a.fail,
				Completed: a.observer.OnCompleted,
			})
		}
	}
	a.fail(fmt.Errorf("interaction: subscribe output: %w", err))
	return framestream.Nop
}

func (b *Bridge) subscribeFeed(a *activation) framestream.Subscription {
	ticks, err := sensor.AllFrames(b.dev)
	if err != nil {
		a.fail(fmt.Errorf("interaction: subscribe feed: %w", err))
		return framestream.Nop
	}

	// The depth timestamp is the correlation token for both pushes.
	feed, err := framefusion.StreamsWith(b.fuser, ticks, func(d sensor.DepthFrame, _ sensor.SkeletonFrame) int64 {
		return d.Timestamp()
	})
	if err != nil {
		a.fail(fmt.Errorf("interaction: subscribe feed: %w", err))
		return framestream.Nop
	}

	return feed.Subscribe(framestream.Funcs[framefusion.Reduced[int64]]{
		Next:  a.push,
		Error: a.fail,
	})
}

func (b *Bridge) closeProcessor() {
	if err := b.proc.Close(); err != nil {
		slog.Warn("interaction: processor close failed", "error", err)
	}

	b.mu.Lock()
	b.state = stateClosed
	b.mu.Unlock()

	st := b.Stats()
	slog.Info("interaction: bridge closed",
		"fed", st.Fed,
		"feed_errors", st.FeedErrors,
		"emitted", st.Emitted,
	)
}

// activation is the state of one Bridge subscription.
//
// The processor is closed only after both subscriptions are disposed and no
// push is in flight. When teardown happens during a push (the processor
// raised its event synchronously and the consumer disposed), the push closes
// the processor on its way out.
type activation struct {
	bridge   *Bridge
	observer framestream.Observer[[]UserInfo]

	feed   framestream.Subscription
	output framestream.Subscription
	failed atomic.Bool

	mu      sync.Mutex
	pushing bool
	closing bool
	closed  bool
}

func (a *activation) push(r framefusion.Reduced[int64]) {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return
	}
	a.pushing = true
	a.mu.Unlock()

	err := a.process(r)

	a.mu.Lock()
	a.pushing = false
	closeNow := a.closing && !a.closed
	if closeNow {
		a.closed = true
	}
	a.mu.Unlock()

	if err != nil {
		a.bridge.feedErrors.Add(1)
		a.fail(err)
	}
	if closeNow {
		a.bridge.closeProcessor()
	}
}

func (a *activation) process(r framefusion.Reduced[int64]) error {
	b := a.bridge
	token := r.Extra

	if err := b.proc.ProcessSkeleton(r.Skeletons, b.dev.AccelerometerReading(), token); err != nil {
		return fmt.Errorf("interaction: process skeleton: %w", err)
	}
	if err := b.proc.ProcessDepth(r.Depth, token); err != nil {
		return fmt.Errorf("interaction: process depth: %w", err)
	}
	b.fed.Add(1)
	return nil
}

func (a *activation) fail(err error) {
	a.failed.Store(true)
	slog.Warn("interaction: bridge failed", "error", err)
	a.observer.OnError(err)
}

func (a *activation) teardown() {
	if a.feed != nil {
		a.feed.Dispose()
	}
	if a.output != nil {
		a.output.Dispose()
	}

	a.mu.Lock()
	a.closing = true
	closeNow := !a.pushing && !a.closed
	if closeNow {
		a.closed = true
	}
	a.mu.Unlock()

	if closeNow {
		a.bridge.closeProcessor()
	}
}

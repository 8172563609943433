package framestream

import (
	"sync"
	"sync/atomic"
)

// Observer receives the notifications of one subscription.
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnCompleted()
}

// Funcs adapts plain functions to Observer. Nil fields are ignored.
type Funcs[T any] struct {
	Next      func(T)
	Error     func(error)
	Completed func()
}

// OnNext implements Observer.
func (f Funcs[T]) OnNext(value T) {
	if f.Next != nil {
		f.Next(value)
	}
}

// OnError implements Observer.
func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// OnCompleted implements Observer.
func (f Funcs[T]) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

// Subscription is the disposer returned by Subscribe.
type Subscription interface {
	// Dispose stops delivery and releases the upstream registration. A
	// delivery already in progress may complete; later ones are dropped.
	// Idempotent.
	Dispose()
}

// SubscriptionFunc adapts a release function to Subscription.
// The function itself is not guarded; wrap it with Once when it must run once.
type SubscriptionFunc func()

// Dispose implements Subscription.
func (f SubscriptionFunc) Dispose() {
	if f != nil {
		f()
	}
}

// Once returns a Subscription that runs release at most once.
func Once(release func()) Subscription {
	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(release)
	})
}

// Nop is a Subscription with nothing to release.
var Nop Subscription = SubscriptionFunc(nil)

// Stream is a cold, lazily subscribed push sequence.
//
// The zero Stream is invalid; IsZero reports it so constructors can fail fast.
type Stream[T any] struct {
	subscribe func(Observer[T]) Subscription
}

// New creates a Stream from a subscribe function.
//
// subscribe is called once per Subscribe with an observer that already
// enforces the notification grammar, and returns what must be released when
// the subscription ends.
func New[T any](subscribe func(o Observer[T]) Subscription) Stream[T] {
	return Stream[T]{subscribe: subscribe}
}

// IsZero reports whether s was never constructed.
func (s Stream[T]) IsZero() bool {
	return s.subscribe == nil
}

// Subscribe starts delivery to o and returns its disposer.
func (s Stream[T]) Subscribe(o Observer[T]) Subscription {
	if s.subscribe == nil {
		panic("framestream: subscribe on zero Stream")
	}

	sk := &sink[T]{observer: o}
	sk.attach(s.subscribe(sk))
	return sk
}

// SubscribeFunc is Subscribe with function callbacks.
func (s Stream[T]) SubscribeFunc(next func(T), fail func(error)) Subscription {
	return s.Subscribe(Funcs[T]{Next: next, Error: fail})
}

// sink enforces the notification grammar for one subscription and owns the
// upstream release.
type sink[T any] struct {
	observer Observer[T]
	stopped  atomic.Bool

	mu       sync.Mutex
	upstream Subscription
	released bool
}

func (s *sink[T]) OnNext(value T) {
	if s.stopped.Load() {
		return
	}
	s.observer.OnNext(value)
}

func (s *sink[T]) OnError(err error) {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer.OnError(err)
	s.release()
}

func (s *sink[T]) OnCompleted() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer.OnCompleted()
	s.release()
}

func (s *sink[T]) Dispose() {
	s.stopped.Store(true)
	s.release()
}

// attach records the upstream subscription. If the sink already terminated
// while subscribe was running, upstream is released immediately.
func (s *sink[T]) attach(upstream Subscription) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		if upstream != nil {
			upstream.Dispose()
		}
		return
	}
	s.upstream = upstream
	s.mu.Unlock()
}

func (s *sink[T]) release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	upstream := s.upstream
	s.upstream = nil
	s.mu.Unlock()

	if upstream != nil {
		upstream.Dispose()
	}
}

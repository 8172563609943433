package framestream

import (
	"fmt"
	"log/slog"
)

// FromEvent bridges a native register/unregister pair into a Stream.
//
// register attaches a handler pair and returns the token unregister needs to
// detach it. next is invoked once per event; fail reports a terminal producer
// condition (device unplugged, driver fault).
//
// Every subscription performs its own registration (no shared multiplexed
// handler): N subscribers cause N registrations on the producer. Disposing a
// subscription calls unregister exactly once, including when the
// subscription ended through a producer failure.
//
// A registration error is delivered as a terminal OnError; nothing is left
// registered in that case.
func FromEvent[T any, K any](
	register func(next func(T), fail func(error)) (K, error),
	unregister func(token K),
) Stream[T] {
	return New(func(o Observer[T]) Subscription {
		token, err := register(o.OnNext, o.OnError)
		if err != nil {
			slog.Debug("framestream: handler registration failed", "error", err)
			o.OnError(fmt.Errorf("framestream: register handler: %w", err))
			return Nop
		}

		return Once(func() {
			unregister(token)
		})
	})
}

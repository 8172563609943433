// Package framestream provides the push-based stream abstraction the depth
// pipeline is built on.
//
// # Philosophy
//
// "Drop ticks, never queue. Latency > Completeness."
//
// A Stream is cold and lazily subscribed: nothing touches the producer until
// Subscribe is called, and every Subscribe performs its own registration. All
// operators run inline on the goroutine that delivers the value (the sensor
// driver's callback thread). No operator in this package spawns goroutines
// or blocks.
//
// # Basic Usage
//
//	ticks := framestream.FromEvent(dev.AddAllFramesReady, dev.RemoveAllFramesReady)
//
//	sub := ticks.Subscribe(framestream.Funcs[sensor.AllFramesReady]{
//	    Next:  func(t sensor.AllFramesReady) { ... },
//	    Error: func(err error) { slog.Warn("sensor fault", "error", err) },
//	})
//	defer sub.Dispose()
//
// # Leaving the Push World
//
// Consumers that want their own goroutine use one of two bridges, mirroring
// the drop policies of Orion's framebus:
//
//   - ToChannel: bounded channel, non-blocking send, drops the NEW value when full (DropNew)
//   - Latest:    single-slot mailbox, overwrites the OLD value (DropOld)
//
// Neither bridge ever blocks the producer.
//
// # Grammar
//
// A subscription observes OnNext* followed by at most one of OnError or
// OnCompleted. After a terminal notification, or after Dispose, no further
// notifications are delivered and the upstream registration is released.
// Dispose is idempotent and safe to call concurrently with an in-flight
// delivery (that delivery may still complete).
package framestream

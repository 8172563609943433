package warmup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/orion-depth/modules/framestream"
)

func evenTimes(n int, interval time.Duration) []time.Time {
	base := time.UnixMilli(0)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * interval)
	}
	return out
}

func TestCalculateStable(t *testing.T) {
	times := evenTimes(31, 33*time.Millisecond)
	stats := Calculate(times, 31*33*time.Millisecond)

	if !stats.IsStable {
		t.Fatalf("expected stable, got %+v", stats)
	}
	if stats.RateMean < 30 || stats.RateMean > 31 {
		t.Errorf("rate mean %.2f", stats.RateMean)
	}
	t.Logf("✅ 30 Hz even arrivals: mean=%.2f jitter=%.4fs", stats.RateMean, stats.JitterMean)
}

func TestCalculateUnstableWithGaps(t *testing.T) {
	// Every third tick dropped: intervals alternate 33ms, 66ms.
	var times []time.Time
	base := time.UnixMilli(0)
	for i := 0; i < 60; i++ {
		if i%3 == 2 {
			continue
		}
		times = append(times, base.Add(time.Duration(i)*33*time.Millisecond))
	}
	stats := Calculate(times, 60*33*time.Millisecond)

	if stats.IsStable {
		t.Fatalf("expected unstable, got %+v", stats)
	}
}

func TestCalculateEdgeCases(t *testing.T) {
	if s := Calculate(nil, time.Second); s.Received != 0 || s.IsStable {
		t.Errorf("empty: %+v", s)
	}
	same := []time.Time{time.UnixMilli(5), time.UnixMilli(5)}
	if s := Calculate(same, time.Second); s.IsStable || s.RateMin != 0 {
		t.Errorf("zero intervals: %+v", s)
	}
}

// ticker emits an increasing sequence from a goroutine until disposed.
func ticker(period time.Duration) framestream.Stream[int64] {
	return framestream.New(func(o framestream.Observer[int64]) framestream.Subscription {
		var stop atomic.Bool
		go func() {
			var i int64
			for !stop.Load() {
				o.OnNext(i)
				i++
				time.Sleep(period)
			}
		}()
		return framestream.Once(func() { stop.Store(true) })
	})
}

func TestMeasure(t *testing.T) {
	// Values carry their own device time: 33ms apart regardless of scheduling.
	stamp := func(i int64) time.Time { return time.UnixMilli(i * 33) }

	stats, err := Measure(context.Background(), ticker(2*time.Millisecond), stamp, 150*time.Millisecond)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if stats.Received < 2 || !stats.IsStable {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.RateMean < 29 || stats.RateMean > 32 {
		t.Errorf("rate mean %.2f, want ~30.3", stats.RateMean)
	}
}

func TestMeasureStreamEnds(t *testing.T) {
	src := framestream.New(func(o framestream.Observer[int64]) framestream.Subscription {
		o.OnNext(1)
		o.OnCompleted()
		return framestream.Nop
	})

	_, err := Measure(context.Background(), src, func(i int64) time.Time { return time.UnixMilli(i) }, time.Second)
	if !errors.Is(err, framestream.ErrCompleted) {
		t.Fatalf("expected ErrCompleted, got %v", err)
	}
}

func TestMeasureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Measure(ctx, ticker(time.Millisecond), func(i int64) time.Time { return time.UnixMilli(i) }, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

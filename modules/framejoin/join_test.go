package framejoin_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-depth/modules/framejoin"
	"github.com/e7canasta/orion-depth/modules/framestream"
)

// subject is a hot test producer with a single subscriber slot.
type subject[T any] struct {
	mu       sync.Mutex
	obs      framestream.Observer[T]
	disposed int
}

func (s *subject[T]) stream() framestream.Stream[T] {
	return framestream.New(func(o framestream.Observer[T]) framestream.Subscription {
		s.mu.Lock()
		s.obs = o
		s.mu.Unlock()
		return framestream.Once(func() {
			s.mu.Lock()
			s.obs = nil
			s.disposed++
			s.mu.Unlock()
		})
	})
}

func (s *subject[T]) observer() framestream.Observer[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.obs
}

func (s *subject[T]) next(v T) {
	if o := s.observer(); o != nil {
		o.OnNext(v)
	}
}

func (s *subject[T]) fail(err error) {
	if o := s.observer(); o != nil {
		o.OnError(err)
	}
}

func (s *subject[T]) complete() {
	if o := s.observer(); o != nil {
		o.OnCompleted()
	}
}

// manualClock returns whatever instant was set last.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }
func (c *manualClock) set(ms int64)   { c.now = time.UnixMilli(ms) }

var _ framejoin.Clock = (*manualClock)(nil)

func join(l, r int) [2]int { return [2]int{l, r} }

// TestExpiryDropsStalePairs replays the reference interleaving.
//
// Scenario (tolerance 200ms, arrival time == value):
//
//	L:0 @0, R:100 @100, L:1000 @1000, R:1500 @1500
//
// Only (0,100) is within tolerance; both later pairs are 900ms and 500ms apart.
func TestExpiryDropsStalePairs(t *testing.T) {
	clock := &manualClock{}
	var counters framejoin.Counters
	left, right := &subject[int]{}, &subject[int]{}

	s, err := framejoin.CombineLatestWithExpiry(left.stream(), right.stream(), join, 200*time.Millisecond,
		framejoin.WithClock(clock), framejoin.WithCounters(&counters))
	if err != nil {
		t.Fatalf("CombineLatestWithExpiry: %v", err)
	}

	var got [][2]int
	sub := s.SubscribeFunc(func(v [2]int) { got = append(got, v) }, nil)
	defer sub.Dispose()

	clock.set(0)
	left.next(0)
	clock.set(100)
	right.next(100)
	clock.set(1000)
	left.next(1000)
	clock.set(1500)
	right.next(1500)

	if len(got) != 1 || got[0] != join(0, 100) {
		t.Fatalf("expected [(0,100)], got %v", got)
	}

	st := counters.Snapshot()
	if st.Left != 2 || st.Right != 2 || st.Emitted != 1 || st.Stale != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
	t.Logf("✅ only (0,100) emitted, stats=%+v", st)
}

// TestExpiryBoundaryIsStrict validates that a pair exactly tolerance apart is stale.
func TestExpiryBoundaryIsStrict(t *testing.T) {
	cases := []struct {
		name    string
		deltaMs int64
		emitted bool
	}{
		{"just inside", 199, true},
		{"exactly tolerance", 200, false},
		{"outside", 201, false},
		{"right before left", -199, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &manualClock{}
			left, right := &subject[int]{}, &subject[int]{}
			s, _ := framejoin.CombineLatestWithExpiry(left.stream(), right.stream(), join, 200*time.Millisecond,
				framejoin.WithClock(clock))

			n := 0
			sub := s.SubscribeFunc(func([2]int) { n++ }, nil)
			defer sub.Dispose()

			clock.set(1000)
			left.next(1)
			clock.set(1000 + tc.deltaMs)
			right.next(2)

			if (n == 1) != tc.emitted {
				t.Errorf("delta %dms: emitted=%d, want emitted=%v", tc.deltaMs, n, tc.emitted)
			}
		})
	}
}

// TestNoEmissionUntilBothSides validates the join waits for a first value on each side.
func TestNoEmissionUntilBothSides(t *testing.T) {
	left, right := &subject[int]{}, &subject[int]{}
	s, _ := framejoin.CombineLatest(left.stream(), right.stream(), join)

	var got [][2]int
	sub := s.SubscribeFunc(func(v [2]int) { got = append(got, v) }, nil)
	defer sub.Dispose()

	left.next(1)
	left.next(2)
	if len(got) != 0 {
		t.Fatalf("emitted before right side: %v", got)
	}

	right.next(10)
	left.next(3)
	want := [][2]int{join(2, 10), join(3, 10)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestJoinTimestampedUsesCarriedTime validates joins over device timestamps.
func TestJoinTimestampedUsesCarriedTime(t *testing.T) {
	left := &subject[framejoin.Timestamped[string]]{}
	right := &subject[framejoin.Timestamped[string]]{}

	s, err := framejoin.JoinTimestamped(left.stream(), right.stream(),
		func(l, r string) string { return l + r }, 33*time.Millisecond)
	if err != nil {
		t.Fatalf("JoinTimestamped: %v", err)
	}

	var got []string
	sub := s.SubscribeFunc(func(v string) { got = append(got, v) }, nil)
	defer sub.Dispose()

	left.next(framejoin.Timestamped[string]{Value: "a", Time: time.UnixMilli(0)})
	right.next(framejoin.Timestamped[string]{Value: "b", Time: time.UnixMilli(40)})
	right.next(framejoin.Timestamped[string]{Value: "c", Time: time.UnixMilli(20)})

	if len(got) != 1 || got[0] != "ac" {
		t.Fatalf("got %v, want [ac]", got)
	}
}

// TestTerminalSemantics validates error propagation and completion.
func TestTerminalSemantics(t *testing.T) {
	t.Run("error on one side disposes both", func(t *testing.T) {
		left, right := &subject[int]{}, &subject[int]{}
		s, _ := framejoin.CombineLatest(left.stream(), right.stream(), join)

		boom := errors.New("device unplugged")
		var gotErr error
		s.SubscribeFunc(nil, func(err error) { gotErr = err })

		right.fail(boom)

		if !errors.Is(gotErr, boom) {
			t.Fatalf("expected %v, got %v", boom, gotErr)
		}
		if left.disposed != 1 || right.disposed != 1 {
			t.Errorf("expected both sides disposed, left=%d right=%d", left.disposed, right.disposed)
		}
	})

	t.Run("completes after both sides complete", func(t *testing.T) {
		left, right := &subject[int]{}, &subject[int]{}
		s, _ := framejoin.CombineLatest(left.stream(), right.stream(), join)

		completed := false
		s.Subscribe(framestream.Funcs[[2]int]{Completed: func() { completed = true }})

		left.complete()
		if completed {
			t.Fatal("completed after one side")
		}
		right.complete()
		if !completed {
			t.Fatal("not completed after both sides")
		}
	})
}

// TestArgumentValidation validates synchronous constructor errors.
func TestArgumentValidation(t *testing.T) {
	ok := (&subject[int]{}).stream()
	var zero framestream.Stream[int]

	if _, err := framejoin.CombineLatestWithExpiry(zero, ok, join, time.Second); !errors.Is(err, framejoin.ErrNilSource) {
		t.Errorf("zero left: %v", err)
	}
	if _, err := framejoin.CombineLatestWithExpiry[int, int, [2]int](ok, ok, nil, time.Second); !errors.Is(err, framejoin.ErrNilCombine) {
		t.Errorf("nil combine: %v", err)
	}
	for _, tol := range []time.Duration{0, -time.Millisecond} {
		if _, err := framejoin.CombineLatestWithExpiry(ok, ok, join, tol); !errors.Is(err, framejoin.ErrInvalidTolerance) {
			t.Errorf("tolerance %s: %v", tol, err)
		}
	}
}

// TestConcurrentSides exercises both sides from different goroutines.
func TestConcurrentSides(t *testing.T) {
	left, right := &subject[int]{}, &subject[int]{}
	s, _ := framejoin.CombineLatest(left.stream(), right.stream(), join)

	// n is only touched by the observer; the join must serialize calls.
	n := 0
	sub := s.SubscribeFunc(func([2]int) { n++ }, nil)
	defer sub.Dispose()

	left.next(0)
	right.next(0)

	var wg sync.WaitGroup
	for _, side := range []*subject[int]{left, right} {
		wg.Add(1)
		go func(s *subject[int]) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.next(i)
			}
		}(side)
	}
	wg.Wait()

	if n != 1001 {
		t.Errorf("expected 1001 emissions, got %d", n)
	}
	t.Logf("✅ %d serialized emissions from 2 producer goroutines", n)
}

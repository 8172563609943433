package interaction_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/interaction"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

// journal records collaborator calls in order.
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	j.lines = append(j.lines, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

// --- sensor fakes ---

type frame struct{ ts int64 }

func (f frame) Timestamp() int64 { return f.ts }
func (f frame) FrameNumber() int { return int(f.ts) }
func (f frame) Close() error     { return nil }

type colorFrame struct{ frame }

func (colorFrame) Format() sensor.ColorImageFormat { return sensor.ColorRgbResolution640x480Fps30 }
func (colorFrame) Width() int                      { return 2 }
func (colorFrame) Height() int                     { return 1 }
func (colorFrame) PixelDataLength() int            { return 8 }
func (colorFrame) CopyPixelDataTo([]byte)          {}

type depthFrame struct{ frame }

func (depthFrame) Format() sensor.DepthImageFormat { return sensor.DepthResolution80x60Fps30 }
func (depthFrame) Width() int                      { return 2 }
func (depthFrame) Height() int                     { return 1 }
func (depthFrame) PixelDataLength() int            { return 2 }
func (depthFrame) CopyPixelDataTo([]int16)         {}
func (d depthFrame) CopyDepthImagePixelDataTo(dst []sensor.DepthImagePixel) {
	for i := range dst {
		dst[i] = sensor.DepthImagePixel{Depth: int16(d.ts)}
	}
}

type skeletonFrame struct{ frame }

func (skeletonFrame) SkeletonArrayLength() int { return 1 }
func (s skeletonFrame) CopySkeletonDataTo(dst []sensor.Skeleton) {
	dst[0] = sensor.Skeleton{TrackingID: 1, TrackingState: sensor.SkeletonTracked}
}

// tick carries a depth timestamp distinct from the skeleton timestamp so the
// correlation token can be told apart.
type tick struct{ depthTS, skeletonTS int64 }

func (t tick) OpenColorImageFrame() (sensor.ColorFrame, bool) {
	return colorFrame{frame{t.depthTS}}, true
}
func (t tick) OpenDepthImageFrame() (sensor.DepthFrame, bool) {
	return depthFrame{frame{t.depthTS}}, true
}
func (t tick) OpenSkeletonFrame() (sensor.SkeletonFrame, bool) {
	return skeletonFrame{frame{t.skeletonTS}}, true
}

type device struct {
	log    *journal
	frames sensor.Handlers[sensor.AllFramesReady]
	addErr error
}

func (d *device) AddAllFramesReady(next func(sensor.AllFramesReady), fail func(error)) (sensor.HandlerID, error) {
	if d.addErr != nil {
		return 0, d.addErr
	}
	d.log.add("add-feed")
	return d.frames.Add(next, fail), nil
}
func (d *device) RemoveAllFramesReady(id sensor.HandlerID) {
	d.log.add("remove-feed")
	d.frames.Remove(id)
}
func (d *device) AddColorFrameReady(func(sensor.ColorFrameReady), func(error)) (sensor.HandlerID, error) {
	return 0, errors.New("unsupported")
}
func (d *device) RemoveColorFrameReady(sensor.HandlerID) {}
func (d *device) AddDepthFrameReady(func(sensor.DepthFrameReady), func(error)) (sensor.HandlerID, error) {
	return 0, errors.New("unsupported")
}
func (d *device) RemoveDepthFrameReady(sensor.HandlerID) {}
func (d *device) AddSkeletonFrameReady(func(sensor.SkeletonFrameReady), func(error)) (sensor.HandlerID, error) {
	return 0, errors.New("unsupported")
}
func (d *device) RemoveSkeletonFrameReady(sensor.HandlerID) {}
func (d *device) AccelerometerReading() sensor.Vector4        { return sensor.Vector4{Y: -1} }

// --- processor fake ---

type interactionFrame struct {
	users  []interaction.UserInfo
	closes *int
}

func (f interactionFrame) Timestamp() int64 { return 0 }
func (f interactionFrame) CopyInteractionDataTo(dst []interaction.UserInfo) {
	copy(dst, f.users)
}
func (f interactionFrame) Close() error { *f.closes++; return nil }

type ready struct{ f interactionFrame }

func (r ready) OpenInteractionFrame() (interaction.Frame, bool) { return r.f, true }

type processor struct {
	log        *journal
	results    sensor.Handlers[interaction.FrameReady]
	addErr     error
	depthErr   error
	closes     int
	frameClose int

	// raise dispatches a result synchronously from ProcessDepth.
	raise bool
	users []interaction.UserInfo
}

func (p *processor) ProcessSkeleton(s []sensor.Skeleton, a sensor.Vector4, ts int64) error {
	p.log.add("skeleton:%d", ts)
	return nil
}

func (p *processor) ProcessDepth(px []sensor.DepthImagePixel, ts int64) error {
	p.log.add("depth:%d", ts)
	if p.depthErr != nil {
		return p.depthErr
	}
	if p.raise {
		p.results.Dispatch(ready{interactionFrame{users: p.users, closes: &p.frameClose}})
	}
	return nil
}

func (p *processor) AddInteractionFrameReady(next func(interaction.FrameReady), fail func(error)) (sensor.HandlerID, error) {
	if p.addErr != nil {
		return 0, p.addErr
	}
	p.log.add("add-output")
	return p.results.Add(next, fail), nil
}

func (p *processor) RemoveInteractionFrameReady(id sensor.HandlerID) {
	p.log.add("remove-output")
	p.results.Remove(id)
}

func (p *processor) Close() error {
	p.closes++
	p.log.add("close")
	return nil
}

func newRig() (*journal, *device, *processor) {
	log := &journal{}
	return log, &device{log: log}, &processor{log: log}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestBridgeFeedsSkeletonBeforeDepth validates push order and correlation token.
//
// Scenario:
//  1. Activate bridge
//  2. Fire 2 ticks with distinct depth/skeleton timestamps
//  3. Assert: skeleton precedes depth on every tick, both carry the depth timestamp
func TestBridgeFeedsSkeletonBeforeDepth(t *testing.T) {
	log, dev, proc := newRig()
	b, err := interaction.NewBridge(dev, proc)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	sub := b.Stream().SubscribeFunc(func([]interaction.UserInfo) {}, nil)

	dev.frames.Dispatch(tick{depthTS: 100, skeletonTS: 90})
	dev.frames.Dispatch(tick{depthTS: 133, skeletonTS: 125})
	sub.Dispose()

	want := []string{
		"add-output", "add-feed",
		"skeleton:100", "depth:100",
		"skeleton:133", "depth:133",
		"remove-feed", "remove-output", "close",
	}
	if got := log.snapshot(); !equal(got, want) {
		t.Fatalf("call order:\n got  %v\n want %v", got, want)
	}
	if st := b.Stats(); st.Fed != 2 || st.FeedErrors != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
	t.Logf("✅ skeleton→depth per tick, teardown feed→output→processor")
}

// TestBridgeRepublishesUserInfo validates the output path and buffer ownership.
func TestBridgeRepublishesUserInfo(t *testing.T) {
	_, dev, proc := newRig()
	proc.raise = true
	proc.users = []interaction.UserInfo{{
		SkeletonTrackingID: 7,
		HandPointers: []interaction.HandPointer{
			{HandType: interaction.HandRight, HandEventType: interaction.HandEventGrip},
		},
	}}

	b, _ := interaction.NewBridge(dev, proc)

	var got [][]interaction.UserInfo
	sub := b.Stream().SubscribeFunc(func(u []interaction.UserInfo) { got = append(got, u) }, nil)
	defer sub.Dispose()

	dev.frames.Dispatch(tick{depthTS: 1, skeletonTS: 1})

	if len(got) != 1 || len(got[0]) != interaction.UserInfoArrayLength {
		t.Fatalf("expected one frame of %d slots, got %v", interaction.UserInfoArrayLength, got)
	}
	if got[0][0].SkeletonTrackingID != 7 || got[0][0].HandPointers[0].HandEventType != interaction.HandEventGrip {
		t.Errorf("unexpected user info %+v", got[0][0])
	}
	if proc.frameClose != 1 {
		t.Errorf("interaction frame closed %d times", proc.frameClose)
	}

	// Mutating the emitted record must not reach the processor's buffer.
	got[0][0].HandPointers[0].HandEventType = interaction.HandEventNone
	if proc.users[0].HandPointers[0].HandEventType != interaction.HandEventGrip {
		t.Error("emitted hand pointers alias processor memory")
	}
	if st := b.Stats(); st.Emitted != 1 {
		t.Errorf("emitted=%d", st.Emitted)
	}
}

// TestBridgeDisposeDuringSynchronousResult validates that a consumer disposing
// from inside a result raised by ProcessDepth closes the processor only after
// the push returns.
func TestBridgeDisposeDuringSynchronousResult(t *testing.T) {
	log, dev, proc := newRig()
	proc.raise = true

	b, _ := interaction.NewBridge(dev, proc)

	var sub framestream.Subscription
	sub = b.Stream().SubscribeFunc(func([]interaction.UserInfo) { sub.Dispose() }, nil)

	dev.frames.Dispatch(tick{depthTS: 5, skeletonTS: 5})

	want := []string{"add-output", "add-feed", "skeleton:5", "depth:5", "remove-feed", "remove-output", "close"}
	if got := log.snapshot(); !equal(got, want) {
		t.Fatalf("call order:\n got  %v\n want %v", got, want)
	}
	if proc.closes != 1 {
		t.Errorf("processor closed %d times", proc.closes)
	}
}

// TestBridgePartialActivationFailure validates release when the feed cannot register.
func TestBridgePartialActivationFailure(t *testing.T) {
	log, dev, proc := newRig()
	dev.addErr = errors.New("sensor busy")

	b, _ := interaction.NewBridge(dev, proc)

	var gotErr error
	b.Stream().SubscribeFunc(nil, func(err error) { gotErr = err })

	if gotErr == nil || !errors.Is(gotErr, dev.addErr) {
		t.Fatalf("expected wrapped %v, got %v", dev.addErr, gotErr)
	}
	want := []string{"add-output", "remove-output", "close"}
	if got := log.snapshot(); !equal(got, want) {
		t.Fatalf("call order:\n got  %v\n want %v", got, want)
	}
}

// TestBridgeOutputRegistrationFailure validates that the feed is never attached
// when the output registration fails.
func TestBridgeOutputRegistrationFailure(t *testing.T) {
	log, dev, proc := newRig()
	proc.addErr = errors.New("processor not ready")

	b, _ := interaction.NewBridge(dev, proc)

	var gotErr error
	b.Stream().SubscribeFunc(nil, func(err error) { gotErr = err })

	if !errors.Is(gotErr, proc.addErr) {
		t.Fatalf("expected wrapped %v, got %v", proc.addErr, gotErr)
	}
	if got := log.snapshot(); !equal(got, []string{"close"}) {
		t.Fatalf("expected only close, got %v", got)
	}
}

// TestBridgeProcessorErrorIsTerminal validates feed errors end the stream.
func TestBridgeProcessorErrorIsTerminal(t *testing.T) {
	log, dev, proc := newRig()
	proc.depthErr = errors.New("depth rejected")

	b, _ := interaction.NewBridge(dev, proc)

	var gotErr error
	b.Stream().SubscribeFunc(nil, func(err error) { gotErr = err })

	dev.frames.Dispatch(tick{depthTS: 1, skeletonTS: 1})
	dev.frames.Dispatch(tick{depthTS: 2, skeletonTS: 2})

	if !errors.Is(gotErr, proc.depthErr) {
		t.Fatalf("expected %v, got %v", proc.depthErr, gotErr)
	}
	want := []string{"add-output", "add-feed", "skeleton:1", "depth:1", "remove-feed", "remove-output", "close"}
	if got := log.snapshot(); !equal(got, want) {
		t.Fatalf("call order:\n got  %v\n want %v", got, want)
	}
	if st := b.Stats(); st.FeedErrors != 1 || st.Fed != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

// TestBridgeSingleSubscription validates the idle → active → closed lifecycle.
func TestBridgeSingleSubscription(t *testing.T) {
	_, dev, proc := newRig()
	b, _ := interaction.NewBridge(dev, proc)

	first := b.Stream().SubscribeFunc(nil, nil)

	var second error
	b.Stream().SubscribeFunc(nil, func(err error) { second = err })
	if !errors.Is(second, interaction.ErrBridgeActive) {
		t.Fatalf("expected ErrBridgeActive, got %v", second)
	}

	first.Dispose()
	first.Dispose()
	if proc.closes != 1 {
		t.Fatalf("processor closed %d times", proc.closes)
	}

	var third error
	b.Stream().SubscribeFunc(nil, func(err error) { third = err })
	if !errors.Is(third, interaction.ErrBridgeClosed) {
		t.Fatalf("expected ErrBridgeClosed, got %v", third)
	}
}

// TestNewBridgeValidation validates constructor arguments.
func TestNewBridgeValidation(t *testing.T) {
	_, dev, proc := newRig()
	if _, err := interaction.NewBridge(nil, proc); !errors.Is(err, sensor.ErrNilDevice) {
		t.Errorf("nil device: %v", err)
	}
	if _, err := interaction.NewBridge(dev, nil); !errors.Is(err, interaction.ErrNilProcessor) {
		t.Errorf("nil processor: %v", err)
	}
	if _, err := interaction.FrameReadyStream(nil); !errors.Is(err, interaction.ErrNilProcessor) {
		t.Errorf("FrameReadyStream: %v", err)
	}
	if _, err := interaction.SelectUserInfo(framestream.Stream[interaction.FrameReady]{}); !errors.Is(err, interaction.ErrNilSource) {
		t.Errorf("SelectUserInfo: %v", err)
	}
}

package sensor

import (
	"errors"
	"testing"
)

type tick int

func (tick) OpenColorImageFrame() (ColorFrame, bool) { return nil, false }
func (tick) OpenDepthImageFrame() (DepthFrame, bool) { return nil, false }
func (tick) OpenSkeletonFrame() (SkeletonFrame, bool) { return nil, false }

// device is a minimal Device over Handlers.
type device struct {
	all Handlers[AllFramesReady]
}

func (d *device) AddAllFramesReady(next func(AllFramesReady), fail func(error)) (HandlerID, error) {
	return d.all.Add(next, fail), nil
}
func (d *device) RemoveAllFramesReady(id HandlerID) { d.all.Remove(id) }
func (d *device) AddColorFrameReady(func(ColorFrameReady), func(error)) (HandlerID, error) {
	return 0, errors.New("no color")
}
func (d *device) RemoveColorFrameReady(HandlerID) {}
func (d *device) AddDepthFrameReady(func(DepthFrameReady), func(error)) (HandlerID, error) {
	return 0, errors.New("no depth")
}
func (d *device) RemoveDepthFrameReady(HandlerID) {}
func (d *device) AddSkeletonFrameReady(func(SkeletonFrameReady), func(error)) (HandlerID, error) {
	return 0, errors.New("no skeleton")
}
func (d *device) RemoveSkeletonFrameReady(HandlerID) {}
func (d *device) AccelerometerReading() Vector4 { return Vector4{Y: -1} }

func TestHandlersDispatchOrder(t *testing.T) {
	var h Handlers[int]
	var got []string

	a := h.Add(func(v int) { got = append(got, "a") }, nil)
	h.Add(func(v int) { got = append(got, "b") }, nil)
	h.Add(nil, nil)

	h.Dispatch(1)
	h.Remove(a)
	h.Remove(a) // unknown ids are ignored
	h.Dispatch(2)

	want := []string{"a", "b", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
}

// TestHandlersRemoveDuringDispatch verifies a handler can detach itself
// while being dispatched.
func TestHandlersRemoveDuringDispatch(t *testing.T) {
	var h Handlers[int]
	calls := 0

	var id HandlerID
	id = h.Add(func(int) {
		calls++
		h.Remove(id)
	}, nil)

	h.Dispatch(1)
	h.Dispatch(2)

	if calls != 1 || h.Len() != 0 {
		t.Errorf("calls=%d len=%d", calls, h.Len())
	}
}

func TestHandlersFail(t *testing.T) {
	var h Handlers[int]
	lost := errors.New("unplugged")

	var failures int
	h.Add(nil, func(err error) {
		if !errors.Is(err, lost) {
			t.Errorf("got %v", err)
		}
		failures++
	})
	h.Add(nil, func(error) { failures++ })

	h.Fail(lost)
	h.Fail(lost)

	if failures != 2 {
		t.Errorf("failures = %d, want 2", failures)
	}
	if h.Len() != 0 {
		t.Errorf("registry not cleared")
	}
	t.Logf("✅ fail delivered once per handler")
}

func TestAllFramesRegistersPerSubscription(t *testing.T) {
	d := &device{}
	src, err := AllFrames(d)
	if err != nil {
		t.Fatal(err)
	}

	var first, second int
	s1 := src.SubscribeFunc(func(AllFramesReady) { first++ }, nil)
	s2 := src.SubscribeFunc(func(AllFramesReady) { second++ }, nil)
	if d.all.Len() != 2 {
		t.Fatalf("registrations = %d, want 2", d.all.Len())
	}

	d.all.Dispatch(tick(1))
	s1.Dispose()
	s1.Dispose()
	d.all.Dispatch(tick(2))
	s2.Dispose()

	if first != 1 || second != 2 || d.all.Len() != 0 {
		t.Errorf("first=%d second=%d registered=%d", first, second, d.all.Len())
	}
}

func TestStreamsRegistrationError(t *testing.T) {
	src, err := ColorFrames(&device{})
	if err != nil {
		t.Fatal(err)
	}

	var got error
	src.SubscribeFunc(nil, func(err error) { got = err })
	if got == nil {
		t.Fatal("registration error not delivered")
	}
}

func TestNilDevice(t *testing.T) {
	if _, err := AllFrames(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("AllFrames: %v", err)
	}
	if _, err := ColorFrames(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("ColorFrames: %v", err)
	}
	if _, err := DepthFrames(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("DepthFrames: %v", err)
	}
	if _, err := SkeletonFrames(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("SkeletonFrames: %v", err)
	}
}

func TestFormatDimensions(t *testing.T) {
	cases := []struct {
		name string
		w, h int
		got  func() (int, int)
	}{
		{"rgb 640", 640, 480, ColorRgbResolution640x480Fps30.Dimensions},
		{"rgb 1280", 1280, 960, ColorRgbResolution1280x960Fps12.Dimensions},
		{"depth 320", 320, 240, DepthResolution320x240Fps30.Dimensions},
		{"depth 80", 80, 60, DepthResolution80x60Fps30.Dimensions},
		{"depth undefined", 0, 0, DepthFormatUndefined.Dimensions},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w, h := tc.got(); w != tc.w || h != tc.h {
				t.Errorf("got %dx%d, want %dx%d", w, h, tc.w, tc.h)
			}
		})
	}
	if HandRight.String() != "hand_right" || JointType(99).String() != "unknown" {
		t.Error("joint names")
	}
}

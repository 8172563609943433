package framefusion

import (
	"log/slog"

	"github.com/e7canasta/orion-depth/modules/sensor"
)

// frameScope owns the native handles acquired during one extraction.
// release closes them in reverse acquisition order and is safe to defer.
type frameScope struct {
	held []sensor.Frame
}

func (s *frameScope) hold(f sensor.Frame) {
	s.held = append(s.held, f)
}

func (s *frameScope) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		if err := s.held[i].Close(); err != nil {
			slog.Debug("framefusion: frame release failed",
				"frame_number", s.held[i].FrameNumber(),
				"error", err,
			)
		}
	}
	s.held = nil
}

// Modality is a bit set of the frame kinds a tick can carry.
type Modality uint8

const (
	ModalityColor Modality = 1 << iota
	ModalityDepth
	ModalitySkeleton

	ModalitiesAll = ModalityColor | ModalityDepth | ModalitySkeleton
)

// String returns a human-readable name for a single modality.
func (m Modality) String() string {
	switch m {
	case ModalityColor:
		return "color"
	case ModalityDepth:
		return "depth"
	case ModalitySkeleton:
		return "skeleton"
	default:
		return "mixed"
	}
}

// acquired holds the handles of one tick while the scope is open.
type acquired struct {
	color    sensor.ColorFrame
	depth    sensor.DepthFrame
	skeleton sensor.SkeletonFrame
}

// acquire opens every modality in want and registers each obtained handle in
// scope. Every requested modality is opened even after a miss, so the whole
// tick is consumed at once. Returns the set of modalities that were missing.
func acquire(tick sensor.AllFramesReady, want Modality, scope *frameScope) (acquired, Modality) {
	var a acquired
	var missing Modality

	if want&ModalityColor != 0 {
		if f, ok := tick.OpenColorImageFrame(); ok && f != nil {
			scope.hold(f)
			a.color = f
		} else {
			missing |= ModalityColor
		}
	}

	if want&ModalityDepth != 0 {
		if f, ok := tick.OpenDepthImageFrame(); ok && f != nil {
			scope.hold(f)
			a.depth = f
		} else {
			missing |= ModalityDepth
		}
	}

	if want&ModalitySkeleton != 0 {
		if f, ok := tick.OpenSkeletonFrame(); ok && f != nil {
			scope.hold(f)
			a.skeleton = f
		} else {
			missing |= ModalitySkeleton
		}
	}

	return a, missing
}

func copyColor(f sensor.ColorFrame) []byte {
	buf := make([]byte, f.PixelDataLength())
	f.CopyPixelDataTo(buf)
	return buf
}

func copyDepth(f sensor.DepthFrame) []int16 {
	buf := make([]int16, f.PixelDataLength())
	f.CopyPixelDataTo(buf)
	return buf
}

func copyDepthPixels(f sensor.DepthFrame) []sensor.DepthImagePixel {
	buf := make([]sensor.DepthImagePixel, f.PixelDataLength())
	f.CopyDepthImagePixelDataTo(buf)
	return buf
}

func copySkeletons(f sensor.SkeletonFrame) []sensor.Skeleton {
	buf := make([]sensor.Skeleton, f.SkeletonArrayLength())
	f.CopySkeletonDataTo(buf)
	return buf
}

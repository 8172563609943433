package simulator

import (
	"errors"
	"sync/atomic"

	"github.com/e7canasta/orion-depth/modules/sensor"
)

// ErrFrameReleased is returned by Close on a handle that was already closed.
var ErrFrameReleased = errors.New("simulator: frame already released")

// tick is one synchronized instant. It is delivered to every AllFrames
// handler and, per modality, to the single-modality handlers. Each Open*
// returns a fresh handle; a dropped modality or a tick superseded by a newer
// one opens nothing.
type tick struct {
	dev      *Device
	gen      uint64
	number   int
	ts       int64
	colorFmt sensor.ColorImageFormat
	depthFmt sensor.DepthImageFormat

	dropColor, dropDepth, dropSkeleton bool

	skeletons []sensor.Skeleton
}

func (t *tick) live() bool {
	return t.dev.gen.Load() == t.gen
}

func (t *tick) OpenColorImageFrame() (sensor.ColorFrame, bool) {
	if t.dropColor || !t.live() {
		return nil, false
	}
	return &colorFrame{handle: t.dev.open(t), format: t.colorFmt}, true
}

func (t *tick) OpenDepthImageFrame() (sensor.DepthFrame, bool) {
	if t.dropDepth || !t.live() {
		return nil, false
	}
	return &depthFrame{handle: t.dev.open(t), format: t.depthFmt}, true
}

func (t *tick) OpenSkeletonFrame() (sensor.SkeletonFrame, bool) {
	if t.dropSkeleton || !t.live() {
		return nil, false
	}
	return &skeletonFrame{handle: t.dev.open(t), skeletons: t.skeletons}, true
}

// handle is the part shared by every frame kind.
type handle struct {
	dev    *Device
	ts     int64
	number int
	closed atomic.Bool
}

func (h *handle) Timestamp() int64 { return h.ts }
func (h *handle) FrameNumber() int { return h.number }

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrFrameReleased
	}
	h.dev.released.Add(1)
	return nil
}

type colorFrame struct {
	*handle
	format sensor.ColorImageFormat
}

func (f *colorFrame) Format() sensor.ColorImageFormat { return f.format }

func (f *colorFrame) Width() int {
	w, _ := f.format.Dimensions()
	return w
}

func (f *colorFrame) Height() int {
	_, h := f.format.Dimensions()
	return h
}

func (f *colorFrame) PixelDataLength() int {
	w, h := f.format.Dimensions()
	return w * h * f.format.BytesPerPixel()
}

// CopyPixelDataTo writes a gradient that scrolls one step per frame.
// The pattern repeats every 256 bytes, so one period is written and then
// doubled with copy.
func (f *colorFrame) CopyPixelDataTo(dst []byte) {
	n := min(len(dst), f.PixelDataLength())
	shift := byte(f.number)
	for i := 0; i < min(n, 256); i++ {
		dst[i] = byte(i) + shift
	}
	for k := 256; k < n; k *= 2 {
		copy(dst[k:n], dst[:k])
	}
}

type depthFrame struct {
	*handle
	format sensor.DepthImageFormat
}

func (f *depthFrame) Format() sensor.DepthImageFormat { return f.format }

func (f *depthFrame) Width() int {
	w, _ := f.format.Dimensions()
	return w
}

func (f *depthFrame) Height() int {
	_, h := f.format.Dimensions()
	return h
}

func (f *depthFrame) PixelDataLength() int {
	w, h := f.format.Dimensions()
	return w * h
}

// depthAt is a tilted floor plane between 800mm and 4000mm.
func (f *depthFrame) depthAt(i int) int16 {
	w, _ := f.format.Dimensions()
	if w == 0 {
		return 0
	}
	y := i / w
	return int16(800 + (y*3200)/max(1, f.Height()) + (f.number % 8))
}

// rows calls fill once per image row with the row's depth and its span in
// a destination of length n.
func (f *depthFrame) rows(n int, fill func(depth int16, from, to int)) {
	w := f.Width()
	if w == 0 {
		return
	}
	for from := 0; from < n; from += w {
		fill(f.depthAt(from), from, min(from+w, n))
	}
}

func (f *depthFrame) CopyPixelDataTo(dst []int16) {
	f.rows(min(len(dst), f.PixelDataLength()), func(d int16, from, to int) {
		row := dst[from:to]
		for i := range row {
			row[i] = d << 3
		}
	})
}

func (f *depthFrame) CopyDepthImagePixelDataTo(dst []sensor.DepthImagePixel) {
	f.rows(min(len(dst), f.PixelDataLength()), func(d int16, from, to int) {
		row := dst[from:to]
		for i := range row {
			row[i] = sensor.DepthImagePixel{Depth: d}
		}
	})
}

type skeletonFrame struct {
	*handle
	skeletons []sensor.Skeleton
}

func (f *skeletonFrame) SkeletonArrayLength() int { return len(f.skeletons) }

func (f *skeletonFrame) CopySkeletonDataTo(dst []sensor.Skeleton) {
	copy(dst, f.skeletons)
}

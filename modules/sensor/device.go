// Package sensor defines the depth-sensor collaborator the pipeline consumes:
// frame handles with an acquire/release lifetime, the frame-ready ticks that
// expose them, and the device that raises those ticks.
//
// Nothing in this package talks to hardware. Drivers (and the simulator in
// internal/simulator) implement Device; the pipeline only uses the interfaces
// below.
package sensor

import "errors"

// ErrNilDevice is returned when a required Device is nil.
var ErrNilDevice = errors.New("sensor: device is nil")

// Frame is a native frame handle. Close releases it back to the driver and
// must be called exactly once; no method may be called after Close.
type Frame interface {
	// Timestamp is the device clock time of the frame (milliseconds).
	Timestamp() int64

	// FrameNumber is the driver's running frame counter.
	FrameNumber() int

	// Close releases the handle.
	Close() error
}

// ColorFrame is a color image handle.
type ColorFrame interface {
	Frame
	Format() ColorImageFormat
	Width() int
	Height() int

	// PixelDataLength is the payload size in bytes.
	PixelDataLength() int

	// CopyPixelDataTo copies PixelDataLength bytes into dst.
	CopyPixelDataTo(dst []byte)
}

// DepthFrame is a depth image handle.
type DepthFrame interface {
	Frame
	Format() DepthImageFormat
	Width() int
	Height() int

	// PixelDataLength is the payload size in samples.
	PixelDataLength() int

	// CopyPixelDataTo copies packed depth samples (depth<<3 | player) into dst.
	CopyPixelDataTo(dst []int16)

	// CopyDepthImagePixelDataTo copies unpacked depth pixels into dst.
	CopyDepthImagePixelDataTo(dst []DepthImagePixel)
}

// SkeletonFrame is a skeletal snapshot handle.
type SkeletonFrame interface {
	Frame

	// SkeletonArrayLength is the number of skeleton slots (tracked or not).
	SkeletonArrayLength() int

	// CopySkeletonDataTo copies SkeletonArrayLength records into dst.
	CopySkeletonDataTo(dst []Skeleton)
}

// ColorFrameReady is a tick of the color producer.
type ColorFrameReady interface {
	// OpenColorImageFrame acquires this tick's color frame. ok is false when
	// the frame was already consumed or expired.
	OpenColorImageFrame() (frame ColorFrame, ok bool)
}

// DepthFrameReady is a tick of the depth producer.
type DepthFrameReady interface {
	OpenDepthImageFrame() (frame DepthFrame, ok bool)
}

// SkeletonFrameReady is a tick of the skeleton producer.
type SkeletonFrameReady interface {
	OpenSkeletonFrame() (frame SkeletonFrame, ok bool)
}

// AllFramesReady is a tick of the synchronized producer: one notification
// for color, depth and skeleton of the same instant.
type AllFramesReady interface {
	ColorFrameReady
	DepthFrameReady
	SkeletonFrameReady
}

// HandlerID identifies a registered event handler.
type HandlerID uint64

// Device is the upstream producer.
//
// Each Add* registers one handler pair and returns its id; Remove* detaches
// it and is a no-op for unknown ids. fail is invoked once when the device
// hits a terminal condition; the handler is considered detached afterwards.
type Device interface {
	AddAllFramesReady(next func(AllFramesReady), fail func(error)) (HandlerID, error)
	RemoveAllFramesReady(id HandlerID)

	AddColorFrameReady(next func(ColorFrameReady), fail func(error)) (HandlerID, error)
	RemoveColorFrameReady(id HandlerID)

	AddDepthFrameReady(next func(DepthFrameReady), fail func(error)) (HandlerID, error)
	RemoveDepthFrameReady(id HandlerID)

	AddSkeletonFrameReady(next func(SkeletonFrameReady), fail func(error)) (HandlerID, error)
	RemoveSkeletonFrameReady(id HandlerID)

	// AccelerometerReading returns the current gravity vector.
	AccelerometerReading() Vector4
}

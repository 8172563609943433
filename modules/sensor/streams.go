package sensor

import "github.com/e7canasta/orion-depth/modules/framestream"

// AllFrames returns the synchronized tick stream of dev.
// Each subscription registers its own AllFramesReady handler.
func AllFrames(dev Device) (framestream.Stream[AllFramesReady], error) {
	if dev == nil {
		return framestream.Stream[AllFramesReady]{}, ErrNilDevice
	}
	return framestream.FromEvent(dev.AddAllFramesReady, dev.RemoveAllFramesReady), nil
}

// ColorFrames returns the color tick stream of dev.
func ColorFrames(dev Device) (framestream.Stream[ColorFrameReady], error) {
	if dev == nil {
		return framestream.Stream[ColorFrameReady]{}, ErrNilDevice
	}
	return framestream.FromEvent(dev.AddColorFrameReady, dev.RemoveColorFrameReady), nil
}

// DepthFrames returns the depth tick stream of dev.
func DepthFrames(dev Device) (framestream.Stream[DepthFrameReady], error) {
	if dev == nil {
		return framestream.Stream[DepthFrameReady]{}, ErrNilDevice
	}
	return framestream.FromEvent(dev.AddDepthFrameReady, dev.RemoveDepthFrameReady), nil
}

// SkeletonFrames returns the skeleton tick stream of dev.
func SkeletonFrames(dev Device) (framestream.Stream[SkeletonFrameReady], error) {
	if dev == nil {
		return framestream.Stream[SkeletonFrameReady]{}, ErrNilDevice
	}
	return framestream.FromEvent(dev.AddSkeletonFrameReady, dev.RemoveSkeletonFrameReady), nil
}

package framefusion

import (
	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

// Joint emits the given joint of the first fully tracked skeleton of each
// synchronized tick. Only the skeleton modality is opened; ticks without a
// tracked skeleton are dropped.
func Joint(src framestream.Stream[sensor.AllFramesReady], jt sensor.JointType) (framestream.Stream[sensor.Joint], error) {
	if src.IsZero() {
		return framestream.Stream[sensor.Joint]{}, ErrNilSource
	}

	return framestream.FilterMap(src, func(tick sensor.AllFramesReady) (sensor.Joint, bool) {
		skeletons, ok := readSkeletons(tick)
		if !ok {
			return sensor.Joint{}, false
		}
		s, ok := firstTracked(skeletons)
		if !ok {
			return sensor.Joint{}, false
		}
		return s.Joint(jt), true
	}), nil
}

// Skeletons emits the skeleton slots of every tick. When the frame is not
// available the tick still produces a value: an empty slice.
func Skeletons(src framestream.Stream[sensor.SkeletonFrameReady]) (framestream.Stream[[]sensor.Skeleton], error) {
	if src.IsZero() {
		return framestream.Stream[[]sensor.Skeleton]{}, ErrNilSource
	}

	return framestream.Map(src, func(tick sensor.SkeletonFrameReady) []sensor.Skeleton {
		skeletons, ok := readSkeletons(tick)
		if !ok {
			return []sensor.Skeleton{}
		}
		return skeletons
	}), nil
}

// TrackedSkeleton maps the first fully tracked skeleton of each tick through
// fn. Ticks are dropped when no skeleton is tracked or fn declines.
func TrackedSkeleton[R any](
	src framestream.Stream[sensor.SkeletonFrameReady],
	fn func(sensor.Skeleton) (R, bool),
) (framestream.Stream[R], error) {
	if src.IsZero() {
		return framestream.Stream[R]{}, ErrNilSource
	}

	return framestream.FilterMap(src, func(tick sensor.SkeletonFrameReady) (R, bool) {
		var zero R
		skeletons, ok := readSkeletons(tick)
		if !ok {
			return zero, false
		}
		s, ok := firstTracked(skeletons)
		if !ok {
			return zero, false
		}
		return fn(s)
	}), nil
}

// SkeletonJoint emits the given joint of the first tracked skeleton of each
// skeleton-only tick.
func SkeletonJoint(src framestream.Stream[sensor.SkeletonFrameReady], jt sensor.JointType) (framestream.Stream[sensor.Joint], error) {
	return TrackedSkeleton(src, func(s sensor.Skeleton) (sensor.Joint, bool) {
		return s.Joint(jt), true
	})
}

// readSkeletons is the single-modality scoped extract.
func readSkeletons(tick sensor.SkeletonFrameReady) ([]sensor.Skeleton, bool) {
	f, ok := tick.OpenSkeletonFrame()
	if !ok || f == nil {
		return nil, false
	}

	scope := frameScope{held: []sensor.Frame{f}}
	defer scope.release()

	return copySkeletons(f), true
}

func firstTracked(skeletons []sensor.Skeleton) (sensor.Skeleton, bool) {
	for _, s := range skeletons {
		if s.TrackingState == sensor.SkeletonTracked {
			return s, true
		}
	}
	return sensor.Skeleton{}, false
}

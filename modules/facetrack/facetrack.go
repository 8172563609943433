// Package facetrack runs an external face tracker over format-preserving
// fused frames and selects feature points from its results.
//
// The tracker itself is a collaborator; this package only decides which
// skeletons are tracked, which results are kept and how they are shaped.
package facetrack

import (
	"errors"

	"github.com/e7canasta/orion-depth/modules/framefusion"
	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

var (
	// ErrNilSource is returned when a selector is given a nil stream.
	ErrNilSource = errors.New("facetrack: source stream is nil")

	// ErrNilTracker is returned when no face tracker is supplied.
	ErrNilTracker = errors.New("facetrack: tracker is nil")

	// ErrNilFeaturePoints is returned by SelectFeaturePoints for a nil list.
	ErrNilFeaturePoints = errors.New("facetrack: feature point list is nil")
)

// FeaturePoint indexes a vertex of the tracked face shape.
type FeaturePoint int

const (
	TopSkull           FeaturePoint = 0
	RightEyeOuter      FeaturePoint = 20
	RightEyeInner      FeaturePoint = 23
	LeftEyeInner       FeaturePoint = 56
	LeftEyeOuter       FeaturePoint = 53
	NoseTip            FeaturePoint = 89
	MouthRightCorner   FeaturePoint = 31
	MouthLeftCorner    FeaturePoint = 64
	UnderLowerLip      FeaturePoint = 7
	BottomOfChin       FeaturePoint = 10
	FeaturePointsCount              = 121
)

// PointF is a projected 2D point in color image coordinates.
type PointF struct {
	X, Y float32
}

// Result is one tracking attempt.
type Result interface {
	TrackSuccessful() bool
	Projected3DShape() map[FeaturePoint]PointF
}

// Tracker tracks the face of one skeleton in one fused frame.
type Tracker interface {
	Track(
		colorFormat sensor.ColorImageFormat, color []byte,
		depthFormat sensor.DepthImageFormat, depth []int16,
		skeleton sensor.Skeleton,
	) Result
}

// TrackedFace is a successful result tagged with its skeleton.
type TrackedFace struct {
	TrackingID    int
	TrackingState sensor.SkeletonTrackingState
	Result        Result
}

// PersonPoints is one skeleton with its face shape. Points is nil when the
// skeleton was not fully tracked or the tracker failed.
type PersonPoints struct {
	TrackingID    int
	TrackingState sensor.SkeletonTrackingState
	Joints        [sensor.JointCount]sensor.Joint
	Points        map[FeaturePoint]PointF
}

// FeatureSample is one feature point of one tracked face.
type FeatureSample struct {
	TrackingID    int
	TrackingState sensor.SkeletonTrackingState
	Point         FeaturePoint
	Position      PointF
}

// FeatureSet is a selection of feature points of one tracked face.
type FeatureSet struct {
	TrackingID    int
	TrackingState sensor.SkeletonTrackingState
	Points        map[FeaturePoint]PointF
}

func check(src framestream.Stream[framefusion.Formatted], t Tracker) error {
	if src.IsZero() {
		return ErrNilSource
	}
	if t == nil {
		return ErrNilTracker
	}
	return nil
}

func track(t Tracker, f framefusion.Formatted, s sensor.Skeleton) Result {
	return t.Track(f.ColorFormat, f.Color, f.DepthFormat, f.Depth, s)
}

// FaceTrackFrame tracks the first skeleton slot of every frame and emits the
// successful results. Frames without skeletons are dropped.
func FaceTrackFrame(src framestream.Stream[framefusion.Formatted], t Tracker) (framestream.Stream[Result], error) {
	if err := check(src, t); err != nil {
		return framestream.Stream[Result]{}, err
	}

	return framestream.FilterMap(src, func(f framefusion.Formatted) (Result, bool) {
		if len(f.Skeletons) == 0 {
			return nil, false
		}
		r := track(t, f, f.Skeletons[0])
		if r == nil || !r.TrackSuccessful() {
			return nil, false
		}
		return r, true
	}), nil
}

// FaceTrackFrames tracks every fully tracked skeleton of every frame. The
// emitted slice holds only successful results and may be empty.
func FaceTrackFrames(src framestream.Stream[framefusion.Formatted], t Tracker) (framestream.Stream[[]TrackedFace], error) {
	if err := check(src, t); err != nil {
		return framestream.Stream[[]TrackedFace]{}, err
	}

	return framestream.Map(src, func(f framefusion.Formatted) []TrackedFace {
		faces := make([]TrackedFace, 0, len(f.Skeletons))
		for _, s := range f.Skeletons {
			if s.TrackingState != sensor.SkeletonTracked {
				continue
			}
			r := track(t, f, s)
			if r == nil || !r.TrackSuccessful() {
				continue
			}
			faces = append(faces, TrackedFace{
				TrackingID:    s.TrackingID,
				TrackingState: s.TrackingState,
				Result:        r,
			})
		}
		return faces
	}), nil
}

// PersonPointsOf emits every skeleton slot of every frame with its joints and,
// for fully tracked skeletons the tracker succeeded on, its face shape.
func PersonPointsOf(src framestream.Stream[framefusion.Formatted], t Tracker) (framestream.Stream[[]PersonPoints], error) {
	if err := check(src, t); err != nil {
		return framestream.Stream[[]PersonPoints]{}, err
	}

	return framestream.Map(src, func(f framefusion.Formatted) []PersonPoints {
		people := make([]PersonPoints, len(f.Skeletons))
		for i, s := range f.Skeletons {
			people[i] = PersonPoints{
				TrackingID:    s.TrackingID,
				TrackingState: s.TrackingState,
				Joints:        s.Joints,
			}
			if s.TrackingState != sensor.SkeletonTracked {
				continue
			}
			if r := track(t, f, s); r != nil && r.TrackSuccessful() {
				people[i].Points = r.Projected3DShape()
			}
		}
		return people
	}), nil
}

// SelectFeaturePoint picks fp out of every tracked face.
func SelectFeaturePoint(src framestream.Stream[[]TrackedFace], fp FeaturePoint) (framestream.Stream[[]FeatureSample], error) {
	if src.IsZero() {
		return framestream.Stream[[]FeatureSample]{}, ErrNilSource
	}

	return framestream.Map(src, func(faces []TrackedFace) []FeatureSample {
		out := make([]FeatureSample, len(faces))
		for i, face := range faces {
			out[i] = FeatureSample{
				TrackingID:    face.TrackingID,
				TrackingState: face.TrackingState,
				Point:         fp,
				Position:      face.Result.Projected3DShape()[fp],
			}
		}
		return out
	}), nil
}

// SelectFeaturePoints picks every point of fps out of every tracked face.
// An empty (non-nil) fps yields empty point maps.
func SelectFeaturePoints(src framestream.Stream[[]TrackedFace], fps []FeaturePoint) (framestream.Stream[[]FeatureSet], error) {
	if src.IsZero() {
		return framestream.Stream[[]FeatureSet]{}, ErrNilSource
	}
	if fps == nil {
		return framestream.Stream[[]FeatureSet]{}, ErrNilFeaturePoints
	}
	fps = append([]FeaturePoint(nil), fps...)

	return framestream.Map(src, func(faces []TrackedFace) []FeatureSet {
		out := make([]FeatureSet, len(faces))
		for i, face := range faces {
			shape := face.Result.Projected3DShape()
			points := make(map[FeaturePoint]PointF, len(fps))
			for _, fp := range fps {
				points[fp] = shape[fp]
			}
			out[i] = FeatureSet{
				TrackingID:    face.TrackingID,
				TrackingState: face.TrackingState,
				Points:        points,
			}
		}
		return out
	}), nil
}

package sensor

import "fmt"

// ColorImageFormat identifies the layout of a color frame's pixel buffer.
type ColorImageFormat int

const (
	ColorFormatUndefined ColorImageFormat = iota
	ColorRgbResolution640x480Fps30
	ColorRgbResolution1280x960Fps12
	ColorYuvResolution640x480Fps15
	ColorRawYuvResolution640x480Fps15
	ColorInfraredResolution640x480Fps30
	ColorRawBayerResolution640x480Fps30
)

// Dimensions returns width and height in pixels.
func (f ColorImageFormat) Dimensions() (width, height int) {
	switch f {
	case ColorRgbResolution1280x960Fps12:
		return 1280, 960
	case ColorFormatUndefined:
		return 0, 0
	default:
		return 640, 480
	}
}

// BytesPerPixel returns the pixel stride of the format.
func (f ColorImageFormat) BytesPerPixel() int {
	switch f {
	case ColorRgbResolution640x480Fps30, ColorRgbResolution1280x960Fps12:
		return 4 // BGRX
	case ColorYuvResolution640x480Fps15, ColorRawYuvResolution640x480Fps15, ColorInfraredResolution640x480Fps30:
		return 2
	case ColorRawBayerResolution640x480Fps30:
		return 1
	default:
		return 0
	}
}

// String returns a human-readable name.
func (f ColorImageFormat) String() string {
	switch f {
	case ColorRgbResolution640x480Fps30:
		return "rgb-640x480@30"
	case ColorRgbResolution1280x960Fps12:
		return "rgb-1280x960@12"
	case ColorYuvResolution640x480Fps15:
		return "yuv-640x480@15"
	case ColorRawYuvResolution640x480Fps15:
		return "rawyuv-640x480@15"
	case ColorInfraredResolution640x480Fps30:
		return "infrared-640x480@30"
	case ColorRawBayerResolution640x480Fps30:
		return "rawbayer-640x480@30"
	default:
		return "undefined"
	}
}

// DepthImageFormat identifies the layout of a depth frame.
type DepthImageFormat int

const (
	DepthFormatUndefined DepthImageFormat = iota
	DepthResolution640x480Fps30
	DepthResolution320x240Fps30
	DepthResolution80x60Fps30
)

// Dimensions returns width and height in pixels.
func (f DepthImageFormat) Dimensions() (width, height int) {
	switch f {
	case DepthResolution640x480Fps30:
		return 640, 480
	case DepthResolution320x240Fps30:
		return 320, 240
	case DepthResolution80x60Fps30:
		return 80, 60
	default:
		return 0, 0
	}
}

// String returns a human-readable name.
func (f DepthImageFormat) String() string {
	switch f {
	case DepthFormatUndefined:
		return "undefined"
	default:
		w, h := f.Dimensions()
		return fmt.Sprintf("depth-%dx%d@30", w, h)
	}
}

// DepthImagePixel is one depth sample with its player segmentation index.
type DepthImagePixel struct {
	PlayerIndex int16
	Depth       int16
}

// SkeletonTrackingState classifies how well a skeleton is tracked.
type SkeletonTrackingState int

const (
	SkeletonNotTracked SkeletonTrackingState = iota
	SkeletonPositionOnly
	SkeletonTracked
)

// String returns a human-readable name.
func (s SkeletonTrackingState) String() string {
	switch s {
	case SkeletonPositionOnly:
		return "position_only"
	case SkeletonTracked:
		return "tracked"
	default:
		return "not_tracked"
	}
}

// JointTrackingState classifies a single joint.
type JointTrackingState int

const (
	JointNotTracked JointTrackingState = iota
	JointInferred
	JointTracked
)

// JointType names a skeleton joint.
type JointType int

const (
	HipCenter JointType = iota
	Spine
	ShoulderCenter
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight

	// JointCount is the number of joints per skeleton.
	JointCount = int(FootRight) + 1
)

var jointNames = [JointCount]string{
	"hip_center", "spine", "shoulder_center", "head",
	"shoulder_left", "elbow_left", "wrist_left", "hand_left",
	"shoulder_right", "elbow_right", "wrist_right", "hand_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
}

// String returns the snake_case joint name.
func (j JointType) String() string {
	if j < 0 || int(j) >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// SkeletonPoint is a position in skeleton space (meters).
type SkeletonPoint struct {
	X, Y, Z float32
}

// Joint is one tracked joint.
type Joint struct {
	Type          JointType
	Position      SkeletonPoint
	TrackingState JointTrackingState
}

// Skeleton is one Tracked Entity Record of a skeleton snapshot.
//
// Joints is an array so that copying a Skeleton is a deep copy.
type Skeleton struct {
	TrackingID    int
	TrackingState SkeletonTrackingState
	Position      SkeletonPoint
	Joints        [JointCount]Joint
}

// Joint returns the joint of the given type.
func (s *Skeleton) Joint(t JointType) Joint {
	if t < 0 || int(t) >= JointCount {
		return Joint{}
	}
	return s.Joints[t]
}

// Vector4 is an accelerometer reading (gravity vector, w unused).
type Vector4 struct {
	X, Y, Z, W float32
}

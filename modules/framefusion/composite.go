package framefusion

import "github.com/e7canasta/orion-depth/modules/sensor"

// Timestamps are the device clock times of the frames fused into a Composite.
type Timestamps struct {
	Color    int64
	Depth    int64
	Skeleton int64
}

// Composite is the plain fusion of one tick.
//
// All buffers are owned by the Composite; nothing aliases driver memory.
type Composite struct {
	Color     []byte
	Depth     []int16
	Skeletons []sensor.Skeleton

	Timestamps Timestamps

	// TraceID correlates log lines of one tick across operators.
	// Empty when trace ids are disabled.
	TraceID string
}

// Reduced is the fusion of one tick plus the result of a caller reducer
// applied to the native depth and skeleton frames before release.
type Reduced[T any] struct {
	Color     []byte
	Depth     []sensor.DepthImagePixel
	Skeletons []sensor.Skeleton
	Extra     T

	Timestamps Timestamps
	TraceID    string
}

// Formatted is the plain fusion plus the image formats needed to interpret
// the color and depth buffers (e.g. by a face tracker).
type Formatted struct {
	ColorFormat ColorFormat
	Color       []byte
	DepthFormat DepthFormat
	Depth       []int16
	Skeletons   []sensor.Skeleton

	Timestamps Timestamps
	TraceID    string
}

// ColorFormat and DepthFormat re-export the sensor enumerations so callers of
// Formatted do not need a second import for the common case.
type (
	ColorFormat = sensor.ColorImageFormat
	DepthFormat = sensor.DepthImageFormat
)

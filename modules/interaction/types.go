// Package interaction bridges the fused sensor stream into an external
// interaction processor and republishes the processor's per-user hand state.
//
// The processor is a collaborator: it consumes skeleton and depth buffers and
// raises its own asynchronous frame-ready event. Bridge ties both directions
// to a single subscription lifetime.
package interaction

import (
	"errors"

	"github.com/e7canasta/orion-depth/modules/sensor"
)

// UserInfoArrayLength is the fixed number of user slots per interaction frame.
const UserInfoArrayLength = 6

var (
	// ErrNilProcessor is returned when a required Processor is nil.
	ErrNilProcessor = errors.New("interaction: processor is nil")

	// ErrNilSource is returned when a required source stream is zero.
	ErrNilSource = errors.New("interaction: source stream is nil")

	// ErrBridgeActive is delivered to a second concurrent subscriber of a Bridge.
	ErrBridgeActive = errors.New("interaction: bridge already active")

	// ErrBridgeClosed is delivered when subscribing a Bridge whose processor
	// was already released.
	ErrBridgeClosed = errors.New("interaction: bridge closed")
)

// HandType identifies which hand a pointer belongs to.
type HandType int

const (
	HandNone HandType = iota
	HandLeft
	HandRight
)

// String returns a human-readable name.
func (h HandType) String() string {
	switch h {
	case HandLeft:
		return "left"
	case HandRight:
		return "right"
	default:
		return "none"
	}
}

// HandEventType is the transient hand event of one interaction frame.
type HandEventType int

const (
	HandEventNone HandEventType = iota
	HandEventGrip
	HandEventGripRelease
)

// String returns a human-readable name.
func (e HandEventType) String() string {
	switch e {
	case HandEventGrip:
		return "grip"
	case HandEventGripRelease:
		return "grip_release"
	default:
		return "none"
	}
}

// HandPointer is the state of one hand of one user.
type HandPointer struct {
	HandType      HandType
	HandEventType HandEventType

	IsTracked        bool
	IsActive         bool
	IsInteractive    bool
	IsPressed        bool
	IsPrimaryForUser bool

	// X, Y are interaction-region coordinates; PressExtent is 0..1+.
	X, Y        float64
	PressExtent float64

	RawX, RawY, RawZ float64
}

// UserInfo is the interaction record of one tracked user.
// SkeletonTrackingID 0 marks an empty slot.
type UserInfo struct {
	SkeletonTrackingID int
	HandPointers       []HandPointer
}

// Clone returns a deep copy of u.
func (u UserInfo) Clone() UserInfo {
	out := UserInfo{SkeletonTrackingID: u.SkeletonTrackingID}
	if u.HandPointers != nil {
		out.HandPointers = append([]HandPointer(nil), u.HandPointers...)
	}
	return out
}

// Frame is an interaction frame handle; Close releases it.
type Frame interface {
	Timestamp() int64

	// CopyInteractionDataTo fills dst, which holds UserInfoArrayLength slots.
	CopyInteractionDataTo(dst []UserInfo)

	Close() error
}

// FrameReady is a tick of the processor's frame-ready event.
type FrameReady interface {
	OpenInteractionFrame() (frame Frame, ok bool)
}

// Processor is the interaction-processing collaborator.
//
// ProcessSkeleton and ProcessDepth are called from the sensor's delivery
// goroutine, skeleton first, with the same correlation token. The processor
// may raise its frame-ready event on any goroutine, including synchronously
// from within ProcessDepth.
type Processor interface {
	ProcessSkeleton(skeletons []sensor.Skeleton, accelerometer sensor.Vector4, timestamp int64) error
	ProcessDepth(pixels []sensor.DepthImagePixel, timestamp int64) error

	AddInteractionFrameReady(next func(FrameReady), fail func(error)) (sensor.HandlerID, error)
	RemoveInteractionFrameReady(id sensor.HandlerID)

	// Close releases the processor. No Process* call follows it.
	Close() error
}

package simulator

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-depth/modules/interaction"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

// ErrProcessorClosed is returned by Process* after Close.
var ErrProcessorClosed = errors.New("simulator: processor closed")

// ProcessorStats is a snapshot of processor counters.
type ProcessorStats struct {
	Frames   uint64 // interaction frames raised
	Unpaired uint64 // depth pushes without a matching skeleton push
	Opened   uint64
	Released uint64
}

type handKey struct {
	id   int
	hand interaction.HandType
}

// Processor is a synthetic interaction.Processor.
//
// A hand counts as pressed while it is above the head. The frame that sees a
// hand go up carries Grip, the frame that sees it come down carries
// GripRelease, every frame in between carries no event. The interaction frame
// is raised synchronously from ProcessDepth once the skeleton of the same
// timestamp has been pushed.
type Processor struct {
	handlers sensor.Handlers[interaction.FrameReady]

	mu        sync.Mutex
	skeletons []sensor.Skeleton
	skelTS    int64
	hasSkel   bool
	pressed   map[handKey]bool
	closed    bool

	frames   atomic.Uint64
	unpaired atomic.Uint64
	opened   atomic.Uint64
	released atomic.Uint64
}

var _ interaction.Processor = (*Processor)(nil)

// NewProcessor creates an open processor.
func NewProcessor() *Processor {
	return &Processor{pressed: make(map[handKey]bool)}
}

func (p *Processor) ProcessSkeleton(skeletons []sensor.Skeleton, _ sensor.Vector4, timestamp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrProcessorClosed
	}
	p.skeletons = append(p.skeletons[:0], skeletons...)
	p.skelTS = timestamp
	p.hasSkel = true
	return nil
}

func (p *Processor) ProcessDepth(_ []sensor.DepthImagePixel, timestamp int64) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrProcessorClosed
	}
	if !p.hasSkel || p.skelTS != timestamp {
		p.mu.Unlock()
		p.unpaired.Add(1)
		slog.Debug("simulator: depth without matching skeleton", "timestamp", timestamp)
		return nil
	}
	users := p.interpret()
	p.hasSkel = false
	p.mu.Unlock()

	p.frames.Add(1)
	p.handlers.Dispatch(&frameReady{p: p, ts: timestamp, users: users})
	return nil
}

// interpret derives one UserInfo per skeleton slot. Caller holds p.mu.
func (p *Processor) interpret() []interaction.UserInfo {
	users := make([]interaction.UserInfo, interaction.UserInfoArrayLength)
	seen := make(map[int]bool, len(p.skeletons))

	for i := 0; i < len(p.skeletons) && i < len(users); i++ {
		s := &p.skeletons[i]
		if s.TrackingState != sensor.SkeletonTracked {
			continue
		}
		seen[s.TrackingID] = true
		users[i] = interaction.UserInfo{
			SkeletonTrackingID: s.TrackingID,
			HandPointers: []interaction.HandPointer{
				p.pointer(s, interaction.HandLeft, sensor.HandLeft, sensor.ShoulderLeft),
				p.pointer(s, interaction.HandRight, sensor.HandRight, sensor.ShoulderRight),
			},
		}
	}

	for k := range p.pressed {
		if !seen[k.id] {
			delete(p.pressed, k)
		}
	}
	return users
}

func (p *Processor) pointer(s *sensor.Skeleton, hand interaction.HandType, handJoint, shoulderJoint sensor.JointType) interaction.HandPointer {
	h := s.Joint(handJoint).Position
	sh := s.Joint(shoulderJoint).Position
	head := s.Joint(sensor.Head).Position

	k := handKey{id: s.TrackingID, hand: hand}
	was := p.pressed[k]
	now := h.Y > head.Y
	p.pressed[k] = now

	event := interaction.HandEventNone
	switch {
	case now && !was:
		event = interaction.HandEventGrip
	case !now && was:
		event = interaction.HandEventGripRelease
	}

	return interaction.HandPointer{
		HandType:         hand,
		HandEventType:    event,
		IsTracked:        true,
		IsActive:         h.Y > s.Joint(sensor.Spine).Position.Y,
		IsInteractive:    h.Y > s.Joint(sensor.Spine).Position.Y,
		IsPressed:        now,
		IsPrimaryForUser: hand == interaction.HandRight,
		X:                float64(h.X - sh.X),
		Y:                float64(sh.Y - h.Y),
		PressExtent:      max(0, float64(sh.Z-h.Z)*5),
		RawX:             float64(h.X),
		RawY:             float64(h.Y),
		RawZ:             float64(h.Z),
	}
}

func (p *Processor) AddInteractionFrameReady(next func(interaction.FrameReady), fail func(error)) (sensor.HandlerID, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrProcessorClosed
	}
	return p.handlers.Add(next, fail), nil
}

func (p *Processor) RemoveInteractionFrameReady(id sensor.HandlerID) {
	p.handlers.Remove(id)
}

// Close releases the processor. Later calls return ErrProcessorClosed.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProcessorClosed
	}
	p.closed = true
	p.skeletons = nil
	p.pressed = nil
	slog.Debug("simulator: processor closed", "frames", p.frames.Load())
	return nil
}

// Closed reports whether Close has been called.
func (p *Processor) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Handlers returns the number of registered frame-ready handlers.
func (p *Processor) Handlers() int { return p.handlers.Len() }

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Frames:   p.frames.Load(),
		Unpaired: p.unpaired.Load(),
		Opened:   p.opened.Load(),
		Released: p.released.Load(),
	}
}

type frameReady struct {
	p     *Processor
	ts    int64
	users []interaction.UserInfo
}

func (r *frameReady) OpenInteractionFrame() (interaction.Frame, bool) {
	r.p.opened.Add(1)
	return &interactionFrame{p: r.p, ts: r.ts, users: r.users}, true
}

type interactionFrame struct {
	p      *Processor
	ts     int64
	users  []interaction.UserInfo
	closed atomic.Bool
}

func (f *interactionFrame) Timestamp() int64 { return f.ts }

func (f *interactionFrame) CopyInteractionDataTo(dst []interaction.UserInfo) {
	for i := 0; i < len(dst) && i < len(f.users); i++ {
		dst[i] = f.users[i].Clone()
	}
}

func (f *interactionFrame) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return ErrFrameReleased
	}
	f.p.released.Add(1)
	return nil
}

package framefusion

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-depth/modules/framestream"
	"github.com/e7canasta/orion-depth/modules/sensor"
)

var (
	// ErrNilSource is returned when a required source stream is zero.
	ErrNilSource = errors.New("framefusion: source stream is nil")

	// ErrNilReducer is returned by StreamsWith when reducer is nil.
	ErrNilReducer = errors.New("framefusion: reducer is nil")
)

// Stats is a snapshot of a Fuser's counters.
type Stats struct {
	TicksSeen uint64
	Fused     uint64

	// Dropped counts ticks that produced nothing. A tick missing several
	// modalities counts once here and once in each per-modality counter.
	Dropped         uint64
	MissingColor    uint64
	MissingDepth    uint64
	MissingSkeleton uint64
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithTraceIDs toggles the per-composite uuid TraceID (default on).
func WithTraceIDs(enabled bool) Option {
	return func(f *Fuser) {
		f.traceIDs = enabled
	}
}

// Fuser builds fused streams from tick streams and accounts for every tick
// it observes. One Fuser can back many streams; counters are shared.
type Fuser struct {
	traceIDs bool

	ticksSeen       atomic.Uint64
	fused           atomic.Uint64
	dropped         atomic.Uint64
	missingColor    atomic.Uint64
	missingDepth    atomic.Uint64
	missingSkeleton atomic.Uint64
}

// New creates a Fuser.
func New(opts ...Option) *Fuser {
	f := &Fuser{traceIDs: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stats returns a snapshot of the counters.
func (f *Fuser) Stats() Stats {
	return Stats{
		TicksSeen:       f.ticksSeen.Load(),
		Fused:           f.fused.Load(),
		Dropped:         f.dropped.Load(),
		MissingColor:    f.missingColor.Load(),
		MissingDepth:    f.missingDepth.Load(),
		MissingSkeleton: f.missingSkeleton.Load(),
	}
}

// Streams fuses every tick into a Composite of color bytes, packed depth
// samples and skeletons. Ticks with any modality missing are skipped.
func (f *Fuser) Streams(src framestream.Stream[sensor.AllFramesReady]) (framestream.Stream[Composite], error) {
	if src.IsZero() {
		return framestream.Stream[Composite]{}, ErrNilSource
	}

	return fuse(f, src, func(a acquired) Composite {
		return Composite{
			Color:      copyColor(a.color),
			Depth:      copyDepth(a.depth),
			Skeletons:  copySkeletons(a.skeleton),
			Timestamps: timestampsOf(a),
			TraceID:    f.newTraceID(),
		}
	}), nil
}

// StreamsWith fuses every tick like Streams and additionally applies reducer
// to the native depth and skeleton frames while they are still held. Depth is
// delivered as unpacked DepthImagePixel samples.
//
// reducer must not retain the frames. If it panics the frames are released
// before the panic propagates.
func StreamsWith[T any](
	f *Fuser,
	src framestream.Stream[sensor.AllFramesReady],
	reducer func(sensor.DepthFrame, sensor.SkeletonFrame) T,
) (framestream.Stream[Reduced[T]], error) {
	if src.IsZero() {
		return framestream.Stream[Reduced[T]]{}, ErrNilSource
	}
	if reducer == nil {
		return framestream.Stream[Reduced[T]]{}, ErrNilReducer
	}

	return fuse(f, src, func(a acquired) Reduced[T] {
		extra := reducer(a.depth, a.skeleton)
		return Reduced[T]{
			Color:      copyColor(a.color),
			Depth:      copyDepthPixels(a.depth),
			Skeletons:  copySkeletons(a.skeleton),
			Extra:      extra,
			Timestamps: timestampsOf(a),
			TraceID:    f.newTraceID(),
		}
	}), nil
}

// FormatStreams fuses every tick into a Formatted composite that also carries
// the color and depth image formats.
func (f *Fuser) FormatStreams(src framestream.Stream[sensor.AllFramesReady]) (framestream.Stream[Formatted], error) {
	if src.IsZero() {
		return framestream.Stream[Formatted]{}, ErrNilSource
	}

	return fuse(f, src, func(a acquired) Formatted {
		return Formatted{
			ColorFormat: a.color.Format(),
			Color:       copyColor(a.color),
			DepthFormat: a.depth.Format(),
			Depth:       copyDepth(a.depth),
			Skeletons:   copySkeletons(a.skeleton),
			Timestamps:  timestampsOf(a),
			TraceID:     f.newTraceID(),
		}
	}), nil
}

// fuse is the shared extract-then-build step. build runs only when every
// modality was acquired, and always inside the scope.
func fuse[T any](f *Fuser, src framestream.Stream[sensor.AllFramesReady], build func(acquired) T) framestream.Stream[T] {
	return framestream.FilterMap(src, func(tick sensor.AllFramesReady) (T, bool) {
		return extract(f, tick, build)
	})
}

func extract[T any](f *Fuser, tick sensor.AllFramesReady, build func(acquired) T) (out T, ok bool) {
	f.ticksSeen.Add(1)

	var scope frameScope
	defer scope.release()

	a, missing := acquire(tick, ModalitiesAll, &scope)
	if missing != 0 {
		f.recordMissing(missing)
		return out, false
	}

	out = build(a)
	f.fused.Add(1)
	return out, true
}

func (f *Fuser) recordMissing(missing Modality) {
	f.dropped.Add(1)
	if missing&ModalityColor != 0 {
		f.missingColor.Add(1)
	}
	if missing&ModalityDepth != 0 {
		f.missingDepth.Add(1)
	}
	if missing&ModalitySkeleton != 0 {
		f.missingSkeleton.Add(1)
	}

	slog.Debug("framefusion: tick dropped",
		"missing", missing.String(),
		"dropped_total", f.dropped.Load(),
	)
}

func (f *Fuser) newTraceID() string {
	if !f.traceIDs {
		return ""
	}
	return uuid.NewString()
}

func timestampsOf(a acquired) Timestamps {
	return Timestamps{
		Color:    a.color.Timestamp(),
		Depth:    a.depth.Timestamp(),
		Skeleton: a.skeleton.Timestamp(),
	}
}

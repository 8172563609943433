// Package framefusion turns synchronized frame-ready ticks into Composite
// Frames: owned copies of the color, depth and skeleton payloads of one tick.
//
// # Resource Lifetime
//
// Native frame handles are borrowed from the driver. For every tick the
// extractor opens each modality inside a frame scope; the scope closes every
// handle it holds on every exit path (missing modality, reducer panic,
// normal return). Payloads are deep-copied into freshly allocated buffers
// sized from each frame's own PixelDataLength before the scope closes, so a
// Composite never aliases driver memory.
//
// # Drop Semantics
//
// A tick where any configured modality is not ready produces nothing. This is
// the expected steady state under clock skew between modalities, not an
// error: it is counted in Stats and logged at debug level only.
//
//	fuser := framefusion.New()
//	frames, err := fuser.Streams(ticks)
//	if err != nil {
//	    return err
//	}
//	sub := frames.SubscribeFunc(func(c framefusion.Composite) {
//	    render(c.Color, c.Depth, c.Skeletons)
//	}, nil)
//	defer sub.Dispose()
//
// # Shapes
//
//   - Streams:       color bytes + packed depth samples + skeletons
//   - StreamsWith:   + a caller reducer over the native depth/skeleton frames
//   - FormatStreams: + color/depth image formats (needed to interpret the bytes)
//
// Selectors over skeleton-only ticks (Joint, Skeletons, TrackedSkeleton) live
// in selectors.go.
package framefusion

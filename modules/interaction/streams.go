package interaction

import (
	"log/slog"

	"github.com/e7canasta/orion-depth/modules/framestream"
)

// FrameReadyStream adapts the processor's frame-ready event.
// Each subscription registers its own handler.
func FrameReadyStream(p Processor) (framestream.Stream[FrameReady], error) {
	if p == nil {
		return framestream.Stream[FrameReady]{}, ErrNilProcessor
	}
	return framestream.FromEvent(p.AddInteractionFrameReady, p.RemoveInteractionFrameReady), nil
}

// SelectUserInfo copies the user slots out of every interaction tick.
// Ticks whose frame is no longer available are dropped. Every emitted slice
// has UserInfoArrayLength entries and owns its hand pointers.
func SelectUserInfo(src framestream.Stream[FrameReady]) (framestream.Stream[[]UserInfo], error) {
	if src.IsZero() {
		return framestream.Stream[[]UserInfo]{}, ErrNilSource
	}
	return framestream.FilterMap(src, readUserInfo), nil
}

func readUserInfo(tick FrameReady) ([]UserInfo, bool) {
	f, ok := tick.OpenInteractionFrame()
	if !ok || f == nil {
		return nil, false
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("interaction: frame release failed", "error", err)
		}
	}()

	buf := make([]UserInfo, UserInfoArrayLength)
	f.CopyInteractionDataTo(buf)

	// The processor may hand out its own pointer slices; detach them.
	for i := range buf {
		buf[i] = buf[i].Clone()
	}
	return buf, true
}

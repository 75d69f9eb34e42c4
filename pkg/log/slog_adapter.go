package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see DPA traffic in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Link != "" {
		attrs = append(attrs, slog.String("link", event.Link))
	}
	if event.NodeAddr != nil {
		attrs = append(attrs, slog.Uint64("nadr", uint64(*event.NodeAddr)))
	}
	if event.MsgID != "" {
		attrs = append(attrs, slog.String("msg_id", event.MsgID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Packet != nil:
		p := event.Packet
		attrs = append(attrs,
			slog.String("kind", p.Kind.String()),
			slog.Uint64("pnum", uint64(p.PNUM)),
			slog.Uint64("pcmd", uint64(p.PCMD)),
			slog.Uint64("hwpid", uint64(p.HWPID)),
		)
		if p.ErrN != nil {
			attrs = append(attrs, slog.Uint64("errn", uint64(*p.ErrN)))
		}
		if p.Elapsed != nil {
			attrs = append(attrs, slog.Duration("elapsed", *p.Elapsed))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)

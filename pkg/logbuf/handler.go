package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Handler adapts a Sink to slog.Handler so components built on structured
// logging share the buffered backend.
type Handler struct {
	sink  *Sink
	attrs []slog.Attr
	group string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler wraps sink in a slog.Handler.
func NewHandler(sink *Sink) *Handler {
	return &Handler{sink: sink}
}

// sinkLevel maps slog levels onto the sink's severity scale.
func sinkLevel(level slog.Level) Level {
	switch {
	case level < slog.LevelDebug:
		return LevelTrace
	case level < slog.LevelInfo:
		return LevelDebug
	case level < slog.LevelWarn:
		return LevelInfo
	case level < slog.LevelError:
		return LevelWarning
	default:
		return LevelError
	}
}

// Enabled reports whether records at the given level survive the filter.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return sinkLevel(level) >= h.sink.level && h.sink.level != LevelOff
}

// Handle renders the record as "msg key=value ..." and hands it to the sink.
// The sink owns the goroutine-id/timestamp/level prefix.
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(record.Message)

	appendAttr := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		sb.WriteByte(' ')
		if h.group != "" {
			sb.WriteString(h.group)
			sb.WriteByte('.')
		}
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		sb.WriteString(fmt.Sprint(a.Value.Resolve().Any()))
	}

	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	h.sink.Log(sinkLevel(record.Level), sb.String())
	return nil
}

// WithAttrs returns a handler whose records carry the additional attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup returns a handler qualifying subsequent attribute keys.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

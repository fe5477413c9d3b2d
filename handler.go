package logpipe

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

// Handler adapts the log/slog facade to a set of async appenders. Each slog
// record is converted once into a Record and fanned out; appenders encode it
// with their own layouts on the calling goroutine.
type Handler struct {
	appenders []*AsyncAppender
	level     *slog.LevelVar

	// attrs rendered from WithAttrs/WithGroup chains, appended to messages.
	baked  string
	groups []string
}

// NewHandler builds a slog handler over appenders with a shared mutable level
// threshold.
func NewHandler(level *slog.LevelVar, appenders ...*AsyncAppender) *Handler {
	if level == nil {
		level = new(slog.LevelVar)
	}
	return &Handler{appenders: appenders, level: level}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler: convert, then fan out. The first append
// error is reported; the record still reaches every remaining appender.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := Record{
		Level:     levelFromSlog(r.Level),
		Time:      r.Time,
		Message:   h.renderMessage(r),
		Goroutine: goroutineID(),
	}
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		rec.Module = moduleFromFunction(frame.Function)
		rec.File = frame.File
		rec.Line = frame.Line
	}

	var firstErr error
	for _, appender := range h.appenders {
		if err := appender.Append(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs implements slog.Handler by baking the attrs into the message
// suffix; appender layouts have no per-attr slots.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var sb strings.Builder
	sb.WriteString(h.baked)
	for _, attr := range attrs {
		appendAttr(&sb, h.groups, attr)
	}
	clone.baked = sb.String()
	return &clone
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *Handler) renderMessage(r slog.Record) string {
	if h.baked == "" && r.NumAttrs() == 0 {
		return r.Message
	}
	var sb strings.Builder
	sb.WriteString(r.Message)
	sb.WriteString(h.baked)
	r.Attrs(func(attr slog.Attr) bool {
		appendAttr(&sb, h.groups, attr)
		return true
	})
	return sb.String()
}

func appendAttr(sb *strings.Builder, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	sb.WriteByte(' ')
	for _, group := range groups {
		sb.WriteString(group)
		sb.WriteByte('.')
	}
	sb.WriteString(attr.Key)
	sb.WriteByte('=')
	sb.WriteString(attr.Value.String())
}

// moduleFromFunction reduces a runtime function name such as
// "logpipe/internal/receiver.(*Server).run" to its package path.
func moduleFromFunction(fn string) string {
	if fn == "" {
		return ""
	}
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}

package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey int

const slogFieldsKey ctxKey = iota

// ContextHandler wraps a slog.Handler and adds to every record the attrs
// previously appended to the context with AppendCtx.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFieldsKey).([]slog.Attr); ok {
		for _, attr := range attrs {
			r.AddAttrs(attr)
		}
	}

	return h.Handler.Handle(ctx, r)
}

func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if attrs, ok := parent.Value(slogFieldsKey).([]slog.Attr); ok {
		newAttrs := make([]slog.Attr, len(attrs), len(attrs)+1)
		copy(newAttrs, attrs)
		return context.WithValue(parent, slogFieldsKey, append(newAttrs, attr))
	}

	return context.WithValue(parent, slogFieldsKey, []slog.Attr{attr})
}

package logbuf

import (
	"context"
	"log/slog"
)

// Handler is an slog.Handler that captures entries into a Buffer and
// delegates to an inner handler. The component attr is lifted out of
// the attr map so queries can filter on it cheaply.
type Handler struct {
	inner  slog.Handler
	buf    *Buffer
	attrs  []slog.Attr
	groups []string
}

// NewHandler creates a handler that writes to both buf and inner.
func NewHandler(inner slog.Handler, buf *Buffer) *Handler {
	return &Handler{inner: inner, buf: buf}
}

// Enabled always reports true so the buffer captures every level; the
// inner handler still applies its own filter on delegation.
func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[h.attrKey(a.Key)] = resolveValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.attrKey(a.Key)] = resolveValue(a.Value)
		return true
	})

	// component gets its own field, not an attr.
	var component string
	if c, ok := attrs["component"].(string); ok {
		component = c
		delete(attrs, "component")
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	h.buf.Write(Entry{
		Time:      r.Time,
		Level:     r.Level.String(),
		Component: component,
		Message:   r.Message,
		Attrs:     attrs,
	})

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) attrKey(key string) string {
	for _, g := range h.groups {
		key = g + "." + key
	}
	return key
}

// resolveValue converts slog values to JSON-safe types. Errors become
// strings so they don't serialize to {}.
func resolveValue(v slog.Value) any {
	v = v.Resolve()
	raw := v.Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		inner:  h.inner.WithAttrs(attrs),
		buf:    h.buf,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:  h.inner.WithGroup(name),
		buf:    h.buf,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}

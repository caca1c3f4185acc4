package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SessionContext is the session state stamped on every record.
type SessionContext struct {
	ID       string
	Gate     string
	Epoch    uint64
	Request  string
	Sequence uint64
	Lat      float64
	Lon      float64
}

// attrs renders c as typed attributes. The id is left out when the logger
// already carries one.
func (c SessionContext) attrs(withID bool) []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	if withID && c.ID != "" {
		attrs = append(attrs, slog.String(sessionKey, c.ID))
	}
	attrs = append(attrs,
		slog.String("gate", c.Gate),
		slog.Uint64("epoch", c.Epoch),
		slog.String("request", c.Request),
	)
	if c.Sequence > 0 {
		attrs = append(attrs, slog.Uint64("sequence", c.Sequence))
	}
	attrs = append(attrs, slog.Group("origin", slog.Float64("lat", c.Lat), slog.Float64("lon", c.Lon)))
	return attrs
}

const sessionKey = "session"

// SessionSource reports the live session state. ok is false while there is
// no session yet.
type SessionSource interface {
	LogContext() (c SessionContext, ok bool)
}

// SessionRef lets loggers be built before the session they describe.
type SessionRef struct {
	p atomic.Pointer[SessionSource]
}

// Set points the reference at src.
func (r *SessionRef) Set(src SessionSource) {
	r.p.Store(&src)
}

// LogContext implements SessionSource.
func (r *SessionRef) LogContext() (SessionContext, bool) {
	p := r.p.Load()
	if p == nil || *p == nil {
		return SessionContext{}, false
	}
	return (*p).LogContext()
}

// SessionHandler stamps records with the state of the session they were
// logged under.
type SessionHandler struct {
	inner  slog.Handler
	src    SessionSource
	withID bool
}

// NewSessionHandler wraps inner with session state read from src on every
// record.
func NewSessionHandler(inner slog.Handler, src SessionSource) *SessionHandler {
	return &SessionHandler{inner: inner, src: src, withID: true}
}

func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.src != nil {
		if c, ok := h.src.LogContext(); ok {
			r.AddAttrs(c.attrs(h.withID)...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	withID := h.withID
	for _, a := range attrs {
		if a.Key == sessionKey {
			withID = false
		}
	}
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), src: h.src, withID: withID}
}

func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), src: h.src, withID: h.withID}
}

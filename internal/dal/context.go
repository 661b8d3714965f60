package dal

import (
	"context"
	"net/http"
)

type contextKey struct{}

// WithHandle returns a copy of ctx carrying h.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

// FromContext returns the request's handle, if middleware installed one.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(contextKey{}).(*Handle)
	return h, ok
}

// Middleware gives every request its own Handle and rolls back any
// transaction the handler forgot to finish.
func (d *DB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := d.Handle()
		defer h.Release()
		next.ServeHTTP(w, r.WithContext(WithHandle(r.Context(), h)))
	})
}

// HandleFor returns the request's handle from ctx, or a fresh one.
func (d *DB) HandleFor(ctx context.Context) *Handle {
	if h, ok := FromContext(ctx); ok && h.db == d {
		return h
	}
	return d.Handle()
}

package server

import (
	"context"
	"net/http"

	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/logger"
)

type contextKey string

const contextKeySnapshot contextKey = "flagbase_snapshot"

// SnapshotSource supplies the flag snapshot attached to each request.
type SnapshotSource interface {
	Flags(ctx context.Context) (domain.Snapshot, error)
}

// Middleware attaches one consistent flag snapshot to every request, so a
// handler sees the same flags for its whole lifetime even if a poll lands
// mid-request.
type Middleware struct {
	source SnapshotSource
	log    *logger.Logger
}

// NewMiddleware creates new middleware
func NewMiddleware(source SnapshotSource, log *logger.Logger) *Middleware {
	if log == nil {
		log = logger.NewNop()
	}
	return &Middleware{source: source, log: log}
}

// Handler wraps an HTTP handler. A snapshot read failure is logged and the
// request proceeds without one.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := m.source.Flags(r.Context())
		if err != nil {
			m.log.WithError(err).Warn("failed to attach flag snapshot")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSnapshot(r.Context(), snapshot)))
	})
}

// WithSnapshot returns a copy of ctx carrying snapshot.
func WithSnapshot(ctx context.Context, snapshot domain.Snapshot) context.Context {
	return context.WithValue(ctx, contextKeySnapshot, snapshot)
}

// SnapshotFromContext extracts the snapshot attached by Middleware.
func SnapshotFromContext(ctx context.Context) (domain.Snapshot, bool) {
	snapshot, ok := ctx.Value(contextKeySnapshot).(domain.Snapshot)
	return snapshot, ok
}

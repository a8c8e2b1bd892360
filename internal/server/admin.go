// Package server exposes the SDK's admin and webhook HTTP endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/flagbase/flagbase-go/internal/domain"
	"github.com/flagbase/flagbase-go/internal/logger"
	"github.com/flagbase/flagbase-go/internal/poller"
	"github.com/flagbase/flagbase-go/internal/storage"
)

// Backend is what the admin server needs from the SDK client.
type Backend interface {
	Status() poller.Status
	Flags(ctx context.Context) (domain.Snapshot, error)
	Flag(ctx context.Context, key string) (domain.RawFlag, error)
	Stats() storage.Metrics
	// Refresh restarts the poller so the next request is unconditional.
	Refresh(ctx context.Context) error
}

// AdminServer provides admin HTTP endpoints
type AdminServer struct {
	backend Backend
	addr    string
	secret  string
	log     *logger.Logger

	// mu guards one serving run. Each Start builds a fresh http.Server
	// because a server is unusable after Shutdown.
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewAdminServer creates a new admin server. When secret is non-empty,
// webhook calls must carry a matching HMAC signature.
func NewAdminServer(backend Backend, addr, secret string, log *logger.Logger) *AdminServer {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdminServer{
		backend: backend,
		addr:    addr,
		secret:  secret,
		log:     log.Component("admin"),
	}
}

// Handler returns the admin routes.
func (a *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", a.handleHealth)

	// Cache inspection
	mux.HandleFunc("GET /admin/flags", a.handleFlags)
	mux.HandleFunc("GET /admin/flags/{key}", a.handleFlag)
	mux.HandleFunc("GET /admin/stats", a.handleStats)

	// Resync
	mux.HandleFunc("POST /admin/refresh", a.handleRefresh)
	mux.Handle("POST /webhook", NewWebhookHandler(a.backend, a.secret, a.log))

	return mux
}

// Start binds the listen address and serves in the background until
// Shutdown. It is a no-op while already serving, and may be called again
// after Shutdown.
func (a *AdminServer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("admin server listen on %s: %w", a.addr, err)
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	a.server, a.listener, a.done = srv, ln, done

	a.log.Info("admin server listening", logger.String("addr", ln.Addr().String()))
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("admin server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address while serving, or "" otherwise.
func (a *AdminServer) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown stops the server gracefully and waits for it to exit.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	srv, done := a.server, a.done
	a.server, a.listener, a.done = nil, nil, nil
	a.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-done
	return err
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := a.backend.Status()

	code := http.StatusOK
	state := "healthy"
	if !status.Running {
		code = http.StatusServiceUnavailable
		state = "stopped"
	} else if !status.IsReady() {
		state = "degraded"
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    state,
		"poller":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *AdminServer) handleFlags(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.backend.Flags(r.Context())
	if err != nil {
		a.log.WithError(err).Error("failed to read flags")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *AdminServer) handleFlag(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	flag, err := a.backend.Flag(r.Context(), key)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, flag)
	case domain.IsNotFound(err), errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		a.log.WithError(err).Error("failed to read flag", logger.String("flag", key))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (a *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.backend.Stats())
}

func (a *AdminServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.backend.Refresh(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

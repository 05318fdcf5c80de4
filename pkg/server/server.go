// Package server exposes the certificate snapshot over HTTP: a liveness
// probe, the JSON listing of the current snapshot and the Prometheus
// exposition of the expiration gauge.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/numtide/expiration-watcher/pkg/refresh"
	"github.com/numtide/expiration-watcher/pkg/snapshot"
)

const (
	// DefaultShutdownTimeout bounds the graceful shutdown of in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultRefreshTimeout bounds the on-demand refresh of /json?refresh=true.
	// It stays below writeTimeout so the snapshot can still be written.
	DefaultRefreshTimeout = 45 * time.Second

	writeTimeout = 60 * time.Second
)

// SnapshotSource yields the current snapshot. *snapshot.Store implements it.
type SnapshotSource interface {
	Load() (*snapshot.Snapshot, error)
}

// Refresher runs an on-demand refresh unless one is already in flight.
// *refresh.Scheduler implements it.
type Refresher interface {
	TryRefresh(ctx context.Context, trigger refresh.Trigger) (bool, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the TCP address to listen on, e.g. ":8080".
	Addr string

	// Snapshots serves /json.
	Snapshots SnapshotSource

	// Refresher, when set, lets /json?refresh=true rebuild the snapshot first.
	Refresher Refresher

	// Gatherer serves /metrics. Defaults to controller-runtime's registry.
	Gatherer prometheus.Gatherer

	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// RefreshTimeout defaults to, and is capped at, DefaultRefreshTimeout.
	RefreshTimeout time.Duration
}

// Server is the watcher's HTTP endpoint. It implements manager.Runnable.
type Server struct {
	server          *http.Server
	snapshots       SnapshotSource
	refresher       Refresher
	shutdownTimeout time.Duration
	refreshTimeout  time.Duration
}

// New creates a Server from opts.
func New(opts Options) *Server {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = metrics.Registry
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 || refreshTimeout > DefaultRefreshTimeout {
		refreshTimeout = DefaultRefreshTimeout
	}

	s := &Server{
		snapshots:       opts.Snapshots,
		refresher:       opts.Refresher,
		shutdownTimeout: shutdownTimeout,
		refreshTimeout:  refreshTimeout,
	}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/live", s.handleLive)
	r.Get("/json", s.handleJSON)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.HTTPErrorOnError,
	}))

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the http.Handler for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("server")

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", s.server.Addr, err)
	}

	s.server.BaseContext = func(net.Listener) context.Context {
		return log.IntoContext(context.WithoutCancel(ctx), logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()
	logger.Info("serving HTTP", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// NeedLeaderElection implements manager.LeaderElectionRunnable.
func (s *Server) NeedLeaderElection() bool {
	return false
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if r.URL.Query().Get("refresh") == "true" && s.refresher != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.refreshTimeout)
		ran, err := s.refresher.TryRefresh(ctx, refresh.TriggerManual)
		cancel()
		switch {
		case err != nil:
			logger.V(1).Info("on-demand refresh failed, serving current snapshot", "error", err.Error())
		case !ran:
			logger.V(1).Info("refresh already in flight, serving current snapshot")
		}
	}

	snap, err := s.snapshots.Load()
	if err != nil {
		logger.V(1).Info("no certificate snapshot to serve", "error", err.Error())
		writeText(w, http.StatusInternalServerError, "NOK")
		return
	}

	body, err := json.Marshal(snap.Records())
	if err != nil {
		logger.Error(err, "failed to encode certificate snapshot")
		writeText(w, http.StatusInternalServerError, "NOK")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Package server exposes the daemon's alarms, per-silo state and metrics
// over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"bridgypoll/pkg/alarms"
	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/scheduler"
	"bridgypoll/pkg/silo"
	"bridgypoll/pkg/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the components the handlers read from
type Deps struct {
	Registry  alarms.Registry
	Catalog   *silo.Catalog
	Local     store.Area
	Scheduler *scheduler.Scheduler
	Metrics   http.Handler
	Logger    logger.Logger
	StartTime time.Time
}

// Server wraps the HTTP server and its dependencies
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// New builds the router and HTTP server listening on addr
func New(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	log := d.Logger.WithField("component", "server")

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: log,
	}
}

// NewRouter registers every route on a chi router
func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	h := &handlers{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(accessLog(d.Logger))

	r.Get("/healthz", h.healthz)
	r.Get("/alarms", h.listAlarms)
	r.Get("/silos", h.listSilos)
	r.Get("/silos/{silo}/state", h.siloState)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	return r
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.InfoWithFields("HTTP server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

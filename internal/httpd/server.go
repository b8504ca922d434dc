// Package httpd serves the translation HTTP API: synchronous and streamed
// translation, job history and feedback, cache administration, health, and
// Prometheus metrics.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"glossa/internal/cachestore"
	"glossa/internal/config"
	"glossa/internal/logging"
	"glossa/internal/translation"
	"glossa/internal/translator"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener and its handler graph.
type Server struct {
	cfg     *config.Config
	svc     *translator.Service
	store   *translation.Store
	cache   *cachestore.Cache
	logger  *slog.Logger
	metrics *metrics

	httpServer *http.Server
}

// New assembles the server. Call Start to begin serving.
func New(cfg *config.Config, svc *translator.Service, store *translation.Store, cache *cachestore.Cache, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		store:   store,
		cache:   cache,
		logger:  logging.NewComponentLogger(logger, "httpd"),
		metrics: newMetrics(),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Paths.APIBind,
		Handler: s.routes(),
		// No WriteTimeout: SSE responses stay open for the life of a job.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Paths.APIBind, err)
	}
	s.logger.Info("api server listening", logging.String("addr", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed, closing", logging.Error(err))
			_ = s.httpServer.Close()
		}
		<-errCh
		s.logger.Info("api server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}

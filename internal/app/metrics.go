package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsServer exposes the Prometheus registry on /metrics.
type MetricsServer struct {
	httpServer *http.Server
	listener   net.Listener
	log        zerolog.Logger
}

// NewMetricsServer returns a server for addr; call Start to listen.
func NewMetricsServer(addr string, log zerolog.Logger) *MetricsServer {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start listens and serves in the background.
func (s *MetricsServer) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("serving metrics")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

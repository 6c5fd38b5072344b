package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the metrics HTTP server
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
	addr       net.Addr
}

// NewServer creates a metrics server for m that will listen on addr
func NewServer(addr string, m *Metrics, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	// Health endpoint for the metrics server itself
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to bind: %w", err)
	}
	s.addr = ln.Addr()
	s.log.Info("Starting metrics HTTP server", zap.Stringer("addr", s.addr))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the address the server listens on, nil before Start
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop gracefully stops the metrics HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping metrics HTTP server")
	return s.httpServer.Shutdown(ctx)
}

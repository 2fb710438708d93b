package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/handler"
	"github.com/MKhiriev/go-field-sync/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

type server struct {
	httpServer *httpServer
	address    string
	logger     *logger.Logger

	// listening is closed once the listener is bound.
	listening chan struct{}
	boundAddr string
}

func NewServer(handlers *handler.Handlers, cfg config.Server, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")

	if handlers == nil || handlers.HTTP == nil || cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	return &server{
		httpServer: newHTTPServer(handlers.HTTP.Init(), cfg, logger),
		address:    cfg.HTTPAddress,
		logger:     logger,
		listening:  make(chan struct{}),
	}, nil
}

// RunServer binds the configured address and serves until ctx is done or
// the listener fails. Shutdown waits at most shutdownTimeout for in-flight
// requests.
func (s *server) RunServer(ctx context.Context) error {
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	s.boundAddr = l.Addr().String()
	close(s.listening)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.boundAddr).Msg("Launching HTTP server")
		serveErr <- s.httpServer.serve(l)
	}()

	select {
	case err = <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err = s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err = <-serveErr; err != nil {
		return err
	}

	s.logger.Info().Msg("server Shutdown gracefully")
	return nil
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

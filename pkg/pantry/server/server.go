package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mikepea/pantry/pkg/pantry/config"
)

// Server owns the http.Server and its shutdown.
type Server struct {
	serv            *http.Server
	shutdownTimeout time.Duration
	lg              *zap.SugaredLogger
}

func New(cfg config.Server, h http.Handler, lg *zap.Logger) *Server {
	return &Server{
		serv: &http.Server{ //nolint:exhaustruct
			Addr:         cfg.Addr,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		lg:              lg.Sugar(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.lg.Infof("listening on %s", s.serv.Addr)
		if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	ctxS, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.serv.Shutdown(ctxS); err != nil { //nolint:contextcheck
		return fmt.Errorf("shutdown server error: %w", err)
	}

	s.lg.Info("shut down successfully")
	return nil
}

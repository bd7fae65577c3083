package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server owns the listening socket for the public API.
type Server struct {
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(port int, handler http.Handler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: &l,
	}
}

func (s *Server) Addr() string { return s.server.Addr }

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

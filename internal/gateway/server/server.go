package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// New serves handler over HTTP/1.1 and cleartext HTTP/2. There is no write
// timeout: generation streams stay open for minutes.
func New(port string, handler http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              port,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Printf("Starting document gateway on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

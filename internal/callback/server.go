// Package callback runs the local HTTP listener that completes a browser login.
//
// The backend finishes its OAuth2 flow by redirecting the browser to the
// callback path. The listener stores the issued tokens and reports the outcome
// once on Results.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/socialauth/internal/observability/middleware"
)

// DefaultPath is where the backend redirects the browser after login.
const DefaultPath = "/cookie"

// Server is the login callback listener.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	handler *completionHandler
	addr    net.Addr
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a callback server answering on path.
func New(completer Completer, path string) (*Server, error) {
	if completer == nil {
		return nil, fmt.Errorf("missing completer")
	}
	if path == "" {
		path = DefaultPath
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("callback path must start with /: %q", path)
	}

	handler := newCompletionHandler(completer)

	mux := http.NewServeMux()
	mux.Handle("GET "+path, chain(handler,
		middleware.Logging(slog.Default()),
		Recovery(handler.report),
	))

	return &Server{mux: mux, handler: handler}, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Results delivers the outcome of the first completed login attempt.
func (s *Server) Results() <-chan Result {
	return s.handler.results
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.addr = listener.Addr()

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// Package webkit provides the base HTTP server, middleware chain, and
// response helpers shared by the Frame Vist services.
package webkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures a Server.
type Options struct {
	Name            string // service name for logging
	Port            int
	Verbose         bool
	AllowedOrigin   string // CORS origin, "*" when empty
	ShutdownTimeout time.Duration
}

// Server wraps a chi router with the common middleware stack and lifecycle
// management.
type Server struct {
	Options Options
	Router  *chi.Mux
	Logger  *slog.Logger
	mw      *Middleware

	onShutdown []func(context.Context)
}

// NewLogger returns the JSON slog logger used by every service.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// New creates a Server with the given options.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	logger := NewLogger(opts.Verbose)

	r := chi.NewRouter()
	mw := NewMiddleware(opts, logger)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)

	return &Server{
		Options: opts,
		Router:  r,
		Logger:  logger,
		mw:      mw,
	}
}

// Middleware returns the middleware instance (request log inspection).
func (s *Server) Middleware() *Middleware {
	return s.mw
}

// OnShutdown registers a hook run after the HTTP listener has drained.
func (s *Server) OnShutdown(fn func(context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Serve starts the HTTP server and blocks until an interrupt or SIGTERM.
func (s *Server) Serve() error {
	addr := fmt.Sprintf(":%d", s.Options.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("starting server", "name", s.Options.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-done:
	}
	s.Logger.Info("shutting down server", "name", s.Options.Name)

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	for _, fn := range s.onShutdown {
		fn(ctx)
	}
	return err
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// ErrorReason writes a JSON error response carrying a machine-readable reason.
func ErrorReason(w http.ResponseWriter, status int, reason, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"reason":  reason,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// DecodeJSON decodes a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

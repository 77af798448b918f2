// Package fixture serves a stub of the map editor with the same DOM landmarks
// as the real one, so scenarios can be smoke tested without deploying it.
package fixture

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/arbor"
)

//go:embed assets/*.html
var assets embed.FS

// Paths served by the fixture
const (
	EditorPath  = "/index.html"
	MinimalPath = "/jules-scratch/test.html"
	StatusPath  = "/status"
)

// Server manages the fixture HTTP server
type Server struct {
	addr    string
	logger  arbor.ILogger
	server  *http.Server
	started time.Time

	mu       sync.Mutex
	listener net.Listener
	done     chan error
}

// New creates a fixture server for addr (host:port; ":0" picks a free port)
func New(addr string, logger arbor.ILogger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger,
	}
	s.server = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(s.loggingMiddleware)
	router.Use(s.recoveryMiddleware)

	router.Get("/", s.page("assets/editor.html"))
	router.Get(EditorPath, s.page("assets/editor.html"))
	router.Get(MinimalPath, s.page("assets/minimal.html"))
	router.Get(StatusPath, s.status)
	return router
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := assets.ReadFile(name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"server":    "fixture",
		"started":   s.started.Format(time.RFC3339),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Start binds the listener and serves in the background. It returns once the
// server accepts connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("fixture server already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.started = time.Now()
	s.done = make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info().Str("url", s.URL()).Msg("Fixture server started")
	return nil
}

// URL returns the base URL, or "" before Start
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	addr := s.listener.Addr().(*net.TCPAddr)
	host := "127.0.0.1"
	if addr.IP != nil && !addr.IP.IsUnspecified() {
		host = addr.IP.String()
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(addr.Port)))
}

// Wait blocks until the server stops and returns its serve error, if any
func (s *Server) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	err := <-done
	done <- err
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("fixture server shutdown failed: %w", err)
	}
	if err := s.Wait(); err != nil {
		return err
	}

	s.logger.Info().Msg("Fixture server stopped")
	return nil
}

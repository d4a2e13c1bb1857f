// Package server serves a rendered page during development. The page is
// kept in memory and replaced on every rebuild; with live reload enabled a
// websocket tells open browsers to reload after each change.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/renderer"
	"github.com/conneroisu/brick/internal/version"
	"github.com/conneroisu/brick/internal/websocket"
)

// LiveReloadPath is where browsers open the live-reload socket.
const LiveReloadPath = "/_brick/ws"

const shutdownTimeout = 5 * time.Second

// PreviewServer serves the latest build of the configured page.
type PreviewServer struct {
	config  *config.Config
	builder *renderer.Builder
	hub     *websocket.WebSocketManager
	logger  logging.Logger

	mu     sync.RWMutex
	html   []byte
	result *renderer.Result
	builds int
}

// New creates a preview server for cfg. Nothing is rendered until Rebuild.
func New(cfg *config.Config, logger logging.Logger) *PreviewServer {
	s := &PreviewServer{
		config: cfg,
		logger: logger.WithComponent("server"),
	}

	var opts []renderer.Option
	if cfg.Server.LiveReload {
		s.hub = websocket.NewWebSocketManager(websocket.AllowedOrigins(cfg.Server.AllowedOrigins), logger)
		opts = append(opts, renderer.WithLiveReload(LiveReloadPath))
	}
	s.builder = renderer.NewBuilder(cfg, logger, opts...)
	return s
}

// Builder returns the builder behind the served page.
func (s *PreviewServer) Builder() *renderer.Builder {
	return s.builder
}

// Result returns the latest build, or nil.
func (s *PreviewServer) Result() *renderer.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Rebuild renders the page and swaps it in. Browsers reload when the page
// changed; a failed build is reported to them and the previous page stays.
func (s *PreviewServer) Rebuild(ctx context.Context) (*renderer.Result, error) {
	var buf bytes.Buffer
	result, err := s.builder.Build(ctx, &buf)
	if err != nil {
		s.broadcast(websocket.UpdateMessage{Type: websocket.MessageError, Content: err.Error()})
		return nil, err
	}

	// With an output file configured the page went there, not to buf.
	html := buf.Bytes()
	if buf.Len() == 0 {
		html = []byte(result.HTML)
	}

	s.mu.Lock()
	changed := !bytes.Equal(s.html, html)
	s.html, s.result = html, result
	s.builds++
	s.mu.Unlock()

	if changed {
		s.broadcast(websocket.UpdateMessage{Type: websocket.MessageReload, Target: s.builder.Config().Page.Input})
	}
	return result, nil
}

func (s *PreviewServer) broadcast(msg websocket.UpdateMessage) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msg); err != nil {
		s.logger.Warn(context.Background(), err, "broadcast failed", "type", msg.Type)
	}
}

// Handler returns the HTTP handler: the page at / and /index.html, a health
// report, the live-reload socket and static files from the config
// directory.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.hub != nil {
		mux.HandleFunc(LiveReloadPath, s.hub.HandleWebSocket)
	}
	mux.HandleFunc("GET /_brick/health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /index.html", s.handlePage)
	mux.Handle("/", http.FileServer(http.Dir(s.config.BaseDir)))

	return Chain(mux,
		LoggingMiddleware(s.logger),
		CORSMiddleware(websocket.AllowedOrigins(s.config.Server.AllowedOrigins)),
		SecurityHeadersMiddleware(),
	)
}

func (s *PreviewServer) handlePage(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	html := s.html
	s.mu.RUnlock()

	if html == nil {
		http.Error(w, "page not rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(html)
}

// Health is the body of the health endpoint.
type Health struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	Builds     int       `json:"builds"`
	Components int       `json:"components"`
	Failures   []string  `json:"failures"`
	Clients    int       `json:"clients"`
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "healthy",
		Version:   version.Get().Short(),
		Timestamp: time.Now().UTC(),
		Failures:  []string{},
	}

	s.mu.RLock()
	health.Builds = s.builds
	if s.result != nil {
		health.Components = s.result.Components
		for _, f := range s.result.Failures {
			health.Failures = append(health.Failures, f.Error())
		}
	}
	s.mu.RUnlock()

	switch {
	case health.Builds == 0:
		health.Status = "starting"
	case len(health.Failures) > 0:
		health.Status = "degraded"
	}
	if s.hub != nil {
		health.Clients = s.hub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

// ListenAndServe serves until ctx is done, then shuts down the HTTP server
// and closes the live-reload connections. ready, when not nil, receives the
// bound address.
func (s *PreviewServer) ListenAndServe(ctx context.Context, ready func(addr string)) error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info(ctx, "serving", "addr", ln.Addr().String(), "live_reload", s.hub != nil)
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		s.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Close(shutdownCtx)
	return httpServer.Shutdown(shutdownCtx)
}

// Close disconnects live-reload clients.
func (s *PreviewServer) Close(ctx context.Context) {
	if s.hub != nil {
		_ = s.hub.Shutdown(ctx)
	}
}

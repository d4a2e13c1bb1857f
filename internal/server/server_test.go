package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/internal/logging"
	brickws "github.com/conneroisu/brick/internal/websocket"
)

const page = `<!DOCTYPE html><html><head></head><body><p is="greeting"></p></body></html>`

func testConfig(t *testing.T, liveReload bool) *config.Config {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(input, []byte(page), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("p{}"), 0o644))

	return &config.Config{
		BaseDir: dir,
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			LiveReload:     liveReload,
			AllowedOrigins: []string{"http://editor.local"},
		},
		Page: config.PageConfig{Input: input, ErrorOverlay: true},
		Components: []config.ComponentConfig{
			{Tag: "greeting", Template: "Hello {{name}}", Data: map[string]any{"name": "Ada"}},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*PreviewServer, *httptest.Server) {
	t.Helper()

	s := New(cfg, logging.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close(context.Background())
		ts.Close()
	})
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPreviewServer_ServesPage(t *testing.T) {
	tests := []struct {
		name       string
		liveReload bool
	}{
		{name: "static", liveReload: false},
		{name: "live reload", liveReload: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ts := newTestServer(t, testConfig(t, tt.liveReload))

			resp, _ := get(t, ts.URL+"/")
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not rendered yet")

			result, err := s.Rebuild(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, result.Components)
			assert.Same(t, result, s.Result())

			resp, body := get(t, ts.URL+"/")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, body, "Hello Ada")
			assert.Equal(t, tt.liveReload, strings.Contains(body, LiveReloadPath))

			_, indexBody := get(t, ts.URL+"/index.html")
			assert.Equal(t, body, indexBody)

			_, css := get(t, ts.URL+"/style.css")
			assert.Equal(t, "p{}", css)
		})
	}
}

func TestPreviewServer_Health(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Components = append(cfg.Components, config.ComponentConfig{Tag: "broken", Template: "{{oops"})
	require.NoError(t, os.WriteFile(cfg.Page.Input,
		[]byte(`<body><p is="greeting"></p><p is="broken"></p></body>`), 0o644))
	s, ts := newTestServer(t, cfg)

	decode := func() Health {
		resp, body := get(t, ts.URL+"/_brick/health")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var h Health
		require.NoError(t, json.Unmarshal([]byte(body), &h))
		return h
	}

	assert.Equal(t, "starting", decode().Status)

	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	h := decode()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, 1, h.Builds)
	assert.Len(t, h.Failures, 1)
	assert.NotEmpty(t, h.Version)
}

func TestPreviewServer_RebuildBroadcastsReload(t *testing.T) {
	cfg := testConfig(t, true)
	s, ts := newTestServer(t, cfg)
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+LiveReloadPath, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// An unchanged page does not reload browsers.
	_, err = s.Rebuild(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.Page.Input, []byte(`<body><p is="greeting">x</p><hr></body>`), 0o644))
	_, err = s.Rebuild(context.Background())
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg brickws.UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, brickws.MessageReload, msg.Type)
	assert.Equal(t, cfg.Page.Input, msg.Target)
}

func TestPreviewServer_FailedRebuildKeepsPage(t *testing.T) {
	cfg := testConfig(t, false)
	s, ts := newTestServer(t, cfg)
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(cfg.Page.Input))
	_, err = s.Rebuild(context.Background())
	require.Error(t, err)

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, body, "Hello Ada")
}

func TestPreviewServer_ListenAndServe(t *testing.T) {
	s := New(testConfig(t, true), logging.NewNop())
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx, func(addr string) { addrCh <- addr })
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("server stopped: %v", err)
	}

	_, body := get(t, "http://"+addr+"/")
	assert.Contains(t, body, "Hello Ada")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), CORSMiddleware(brickws.AllowedOrigins{"http://editor.local"}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed", http.MethodGet, "http://editor.local", http.StatusTeapot, "http://editor.local"},
		{"foreign", http.MethodGet, "http://evil.example", http.StatusTeapot, ""},
		{"no origin", http.MethodGet, "", http.StatusTeapot, ""},
		{"preflight", http.MethodOptions, "http://editor.local", http.StatusNoContent, "http://editor.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	h := Chain(http.NotFoundHandler(), LoggingMiddleware(logging.NewNop()))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

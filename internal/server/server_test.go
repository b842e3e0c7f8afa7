// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/config"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/sse"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Build: config.BuildConfig{
			Outdir:    filepath.Join(root, "dist"),
			PublicDir: filepath.Join(root, "public"),
			External:  []string{"/images/*"},
		},
		Server: config.ServerConfig{Host: "localhost", Port: 0},
	}
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { SetupLogger("info", "text") })

	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json", false)
	logger.Info("hidden")
	logger.Warn("shown", "file", "app.css")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "app.css", entry["file"])

	buf.Reset()
	logger = setupLogger(&buf, "debug", "text", false)
	logger.Debug("path replacement complete", "file", "index.css")
	assert.Contains(t, buf.String(), "path replacement complete")
	assert.Contains(t, buf.String(), "file=index.css")
}

func TestStaticServing(t *testing.T) {
	cfg := newTestConfig(t)
	writeFile(t, cfg.Build.Outdir, "app.css", "a{}")
	writeFile(t, cfg.Build.PublicDir, "images/a.png", "img")
	writeFile(t, cfg.Build.PublicDir, "app.css", "shadowed")

	e := newEcho(cfg, sse.NewHub())

	t.Run("bundled output", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.css", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "a{}", rec.Body.String())
		assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	})

	t.Run("public file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/a.png", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "img", rec.Body.String())
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/missing.png", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthAndScript(t *testing.T) {
	e := newEcho(newTestConfig(t), sse.NewHub())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","clients":0,"client_ids":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, liveReloadScript, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/javascript")
	assert.Contains(t, rec.Body.String(), liveReloadPath)
}

// readEvent reads one SSE event block, skipping heartbeats.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			if sb.Len() > 0 {
				return sb.String()
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		sb.WriteString(line)
	}
}

// syncBuffer is a bytes.Buffer safe for use by handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type healthResponse struct {
	Status    string   `json:"status"`
	Clients   int      `json:"clients"`
	ClientIDs []string `json:"client_ids"`
}

func TestLiveReloadEvents(t *testing.T) {
	var logs syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	hub := sse.NewHub()
	srv := httptest.NewServer(newEcho(newTestConfig(t), hub))
	defer srv.Close()

	resp, err := http.Get(srv.URL + liveReloadPath) //nolint:noctx // test request
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "event: connected\ndata: ok\n", readEvent(t, reader))
	assert.Equal(t, 1, hub.ClientCount())

	// The connected client shows up in the health report and in the logs
	healthResp, err := http.Get(srv.URL + "/health") //nolint:noctx // test request
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(healthResp.Body).Decode(&health))
	_ = healthResp.Body.Close()

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	require.Len(t, health.ClientIDs, 1)
	id := health.ClientIDs[0]
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "live reload client connected")
	assert.Contains(t, logs.String(), "client="+id)

	hub.Broadcast(sse.FormatEvent(sse.EventReload, "app.css"))
	assert.Equal(t, "event: reload\ndata: app.css\n", readEvent(t, reader))

	hub.CloseAll()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "live reload client disconnected")
	}, time.Second, 10*time.Millisecond)
}

func TestRebuildEvent(t *testing.T) {
	t.Run("successful build lists outputs", func(t *testing.T) {
		result := &api.BuildResult{OutputFiles: []api.OutputFile{
			{Path: "/out/b.css"},
			{Path: "/out/a.css"},
		}}
		assert.Equal(t, "event: reload\ndata: a.css,b.css\n\n", rebuildEvent(result))
	})

	t.Run("written build reads the metafile", func(t *testing.T) {
		result := &api.BuildResult{Metafile: `{"inputs":{},"outputs":{"dist/app.css":{},"dist/app.js":{}}}`}
		assert.Equal(t, "event: reload\ndata: app.css,app.js\n\n", rebuildEvent(result))
	})

	t.Run("failed build reports errors", func(t *testing.T) {
		result := &api.BuildResult{Errors: []api.Message{{Text: "first"}, {Text: "second"}}}
		assert.Equal(t, "event: build-error\ndata: first\ndata: second\n\n", rebuildEvent(result))
	})

	t.Run("broken metafile", func(t *testing.T) {
		result := &api.BuildResult{Metafile: `{`}
		assert.Empty(t, outputNames(result))
	})
}

func TestWatchContext(t *testing.T) {
	cfg := newTestConfig(t)
	writeFile(t, cfg.Build.PublicDir, "images/hero@2x.png", "img")
	entry := writeFile(t, filepath.Dir(cfg.Build.Outdir), "src/app.scss", `.hero{background:url(/images/hero.png.webp)}`)
	cfg.Build.EntryPoints = []string{entry}

	hub := sse.NewHub()
	ch := hub.Register("test")

	buildCtx, err := newWatchContext(cfg, replacer.New(), hub)
	require.NoError(t, err)
	defer buildCtx.Dispose()

	result := buildCtx.Rebuild()
	require.Empty(t, result.Errors)

	data, err := os.ReadFile(filepath.Join(cfg.Build.Outdir, "app.css"))
	require.NoError(t, err)
	css := string(data)
	assert.Contains(t, css, "/images/hero@2x.png")
	assert.NotContains(t, css, "../images", "serve mode skips bundle finalization")

	select {
	case msg := <-ch:
		assert.Equal(t, sse.FormatEvent(sse.EventReload, "app.css"), msg)
	case <-time.After(time.Second):
		t.Fatal("rebuild should broadcast a reload event")
	}
}

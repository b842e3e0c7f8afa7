// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/sse"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	liveReloadPath   = "/__livereload"
	liveReloadScript = "/__livereload.js"
)

// clientScript reloads the page when the dev server reports a rebuild.
// Stylesheet-only rebuilds swap <link> tags instead of reloading.
const clientScript = `(() => {
  const es = new EventSource("` + liveReloadPath + `");
  es.addEventListener("` + sse.EventReload + `", (e) => {
    const files = e.data.split(",");
    if (files.length > 0 && files.every((f) => f.endsWith(".css"))) {
      for (const link of document.querySelectorAll('link[rel="stylesheet"]')) {
        const url = new URL(link.href);
        url.searchParams.set("t", Date.now());
        link.href = url.toString();
      }
      return;
    }
    location.reload();
  });
  es.addEventListener("` + sse.EventError + `", (e) => console.error("[scss-asset-replacer]", e.data));
})();
`

// heartbeatInterval keeps connections alive through proxies.
var heartbeatInterval = 30 * time.Second

// liveReloadHandler streams rebuild events to browsers.
type liveReloadHandler struct {
	hub *sse.Hub
}

// Events handles the SSE connection endpoint.
func (h *liveReloadHandler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	w := c.Response()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	id := uuid.NewString()
	ch := h.hub.Register(id)
	slog.Debug("live reload client connected", "client", id)
	defer func() {
		h.hub.Unregister(ch)
		slog.Debug("live reload client disconnected", "client", id)
	}()

	if _, err := w.Write([]byte(sse.FormatEvent(sse.EventConnected, "ok"))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// Script serves the browser side of live reload.
func (h *liveReloadHandler) Script(c echo.Context) error {
	return c.Blob(http.StatusOK, "text/javascript; charset=utf-8", []byte(clientScript))
}

// reloadPlugin notifies the hub after every rebuild.
func reloadPlugin(hub *sse.Hub) api.Plugin {
	return api.Plugin{
		Name: "livereload",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				hub.Broadcast(rebuildEvent(result))
				return api.OnEndResult{}, nil
			})
		},
	}
}

// rebuildEvent formats the event sent for a finished build.
func rebuildEvent(result *api.BuildResult) string {
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, m.Text)
		}
		return sse.FormatEvent(sse.EventError, strings.Join(msgs, "\n"))
	}
	return sse.FormatEvent(sse.EventReload, strings.Join(outputNames(result), ","))
}

// esbuildMeta represents the esbuild metafile format.
type esbuildMeta struct {
	Outputs map[string]struct{} `json:"outputs"`
}

// outputNames lists the base names of a build's outputs, sorted. Written
// builds only report them through the metafile.
func outputNames(result *api.BuildResult) []string {
	var paths []string
	for _, f := range result.OutputFiles {
		paths = append(paths, f.Path)
	}

	if len(paths) == 0 && result.Metafile != "" {
		var meta esbuildMeta
		if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
			slog.Debug("failed to parse esbuild meta", "error", err)
		}
		for p := range meta.Outputs {
			paths = append(paths, p)
		}
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, path.Base(filepath.ToSlash(p)))
	}
	slices.Sort(names)
	return names
}

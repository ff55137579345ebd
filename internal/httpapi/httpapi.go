// Package httpapi implements the single entry-point route table: a static
// page proxy for the handful of informational routes, and upgrade dispatch
// into the tunnel engine for everything else that looks like a tunnel
// request.
package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hobihaus/edgetunnel/internal/config"
	"github.com/hobihaus/edgetunnel/internal/metrics"
	"github.com/hobihaus/edgetunnel/internal/tunnel"
	"go.uber.org/zap"
)

// pageFetchTimeout bounds the static-page proxy fetch, distinct from the
// tunnel's own watchdog (spec.md §4.8).
const pageFetchTimeout = 5 * time.Second

// Router dispatches inbound requests between the tunnel engine and the
// static page proxy per spec.md §6's route table.
type Router struct {
	Engine *tunnel.Engine
	Pages  map[string]string
	Log    *zap.SugaredLogger

	client *http.Client
}

func NewRouter(engine *tunnel.Engine, cfg *config.ServerConfig, log *zap.SugaredLogger) *Router {
	return &Router{
		Engine: engine,
		Pages:  cfg.PagePaths,
		Log:    log,
		client: &http.Client{Timeout: pageFetchTimeout},
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) && looksLikeTunnelPath(r.URL.Path) {
		metrics.Accepted.Inc()
		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()
		rt.Engine.ServeHTTP(w, r, strings.TrimPrefix(r.URL.Path, "/"))
		return
	}

	if backend, ok := rt.Pages[r.URL.Path]; ok {
		rt.proxyPage(w, backend)
		return
	}

	http.NotFound(w, r)
}

// looksLikeTunnelPath matches spec.md §4.9's `/(?:[^/]+)`: a single
// non-empty path segment with no further slashes.
func looksLikeTunnelPath(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	return trimmed != "" && !strings.Contains(trimmed, "/")
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (rt *Router) proxyPage(w http.ResponseWriter, backend string) {
	resp, err := rt.client.Get(backend)
	if err != nil {
		rt.Log.Debugw("page fetch failed", "backend", backend, "err", err)
		http.Error(w, "upstream page unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		rt.Log.Debugw("page copy interrupted", "backend", backend, "err", err)
	}
}

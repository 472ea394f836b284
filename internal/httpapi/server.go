// Package httpapi implements the HTTP/SSE surface (C11): every endpoint in
// spec.md §6 plus the additive stats/export/import/metrics endpoints from
// SPEC_FULL.md §4.11, routed with go-chi/chi and using hand-written
// http.Flusher-based SSE writers grounded on lake/api/handlers/sessions.go's
// WatchSessionLock.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hwkim3330/netwatch/internal/bus"
	"github.com/hwkim3330/netwatch/internal/control"
	"github.com/hwkim3330/netwatch/internal/metrics"
	"github.com/hwkim3330/netwatch/internal/ring"
	"github.com/hwkim3330/netwatch/internal/stats"
	"github.com/hwkim3330/netwatch/internal/topology"
)

// Deps are the data-plane components every handler reads from. The HTTP
// layer never holds its own state; it's a thin view over C3/C5/C6/C7/C9.
type Deps struct {
	Control  *control.Plane
	Ring     *ring.Buffer
	Bus      *bus.Bus
	Topology *topology.Maintainer
	Stats    *stats.Aggregator
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// envelope is the {success, data?, error?} JSON shape every non-stream
// response follows.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// NewRouter builds the full chi.Mux for netwatchd, wiring every handler to
// deps. Mirrors lake/api/main.go's router assembly (middleware.Recoverer, a
// flat route list), with a slog-based request logger in place of
// middleware.Logger and without the static-file SPA fallback this process
// has no web dist directory to serve.
func NewRouter(deps Deps) *chi.Mux {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(requestLogger(deps.Log))

	h := &handlers{deps: deps}

	r.Get("/api/status", h.getStatus)
	r.Post("/api/capture/start", h.startCapture)
	r.Post("/api/capture/stop", h.stopCapture)
	r.Post("/api/capture/clear", h.clearCapture)
	r.Get("/api/packets", h.listPackets)
	r.Get("/api/packets/stream", h.streamPackets)
	r.Get("/api/topology", h.getTopology)
	r.Get("/api/interfaces", h.listInterfaces)
	r.Post("/api/interface/set", h.setInterface)
	r.Get("/api/test/ping/stream", h.streamPing)
	r.Get("/api/test/throughput/stream", h.streamThroughput)

	r.Get("/api/stats", h.getStats)
	r.Get("/api/capture/export", h.exportCapture)
	r.Post("/api/capture/import", h.importCapture)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
		})
	}
}

type handlers struct {
	deps Deps
}

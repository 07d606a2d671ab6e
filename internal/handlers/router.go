// Package handlers serves the local mirror over HTTP in the PeeringDB API
// shape, so that another pdbsync can use it as sync.url or cache_url.
package handlers

import (
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xelth-com/pdbsync/internal/backend"
	"github.com/xelth-com/pdbsync/internal/buildinfo"
	"github.com/xelth-com/pdbsync/internal/logging"
	"github.com/xelth-com/pdbsync/internal/metrics"
	"github.com/xelth-com/pdbsync/internal/middleware"
)

// Router wraps the mux router and the storage backend
type Router struct {
	*mux.Router
	backend backend.Backend
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(b backend.Backend) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		backend: b,
	}
	r.Use(r.instrument)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{tag}", r.listObjects).Methods("GET")
	api.HandleFunc("/{tag}/{id:[0-9]+}", r.getObject).Methods("GET")

	// Cache files, as served by public.peeringdb.com
	r.HandleFunc("/{tag}-0.json", r.cacheFile).Methods("GET")

	return r
}

// Handler returns the router behind the middleware that has to run before
// route matching.
func (r *Router) Handler() http.Handler {
	return middleware.LowercasePath(r.Router)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route template and status.
func (r *Router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := req.URL.Path
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordHTTPRequest(route, rec.status)
		logging.Debug().
			Str("method", req.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// healthCheck returns the health status of the mirror
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    buildinfo.Version,
		"backend":    r.backend.Name(),
		"started_at": buildinfo.StartTime,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := gojson.NewEncoder(w).Encode(data); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error in the API's meta envelope
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"meta": map[string]string{"error": message},
	})
}

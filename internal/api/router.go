package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers the control-plane routes. metricsHandler serves
// the Prometheus scrape endpoint and may be nil.
func NewRouter(h *Handlers, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/readings", h.Readings).Methods(http.MethodGet)
	r.HandleFunc("/cmd/start", h.Start).Methods(http.MethodPost)
	r.HandleFunc("/cmd/stop", h.Stop).Methods(http.MethodPost)
	r.HandleFunc("/cmd/connect", h.Connect).Methods(http.MethodPost)
	r.HandleFunc("/cmd/disconnect", h.Disconnect).Methods(http.MethodPost)
	r.HandleFunc("/sync", h.Sync).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.WebSocket).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	return r
}

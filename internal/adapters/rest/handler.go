// Package rest exposes the symphony composer, the track finder and the
// session state machine as a JSON API, and mounts the HTML interface.
package rest

import (
	"net/http"

	"github.com/ewilliams-labs/aura/internal/core/services"
)

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc    *services.Orchestrator // Dependency on the Core Service
	ui     http.Handler           // optional HTML interface mounted at /
	router *http.ServeMux         // Standard library router
	chain  http.Handler
}

// NewHandler initializes the HTTP adapter and sets up routes. ui may be nil.
func NewHandler(svc *services.Orchestrator, ui http.Handler) *Handler {
	h := &Handler{
		svc:    svc,
		ui:     ui,
		router: http.NewServeMux(),
	}

	// Register Routes
	h.routes()
	h.chain = withRequestLogging(h.router)

	return h
}

// ServeHTTP satisfies the http.Handler interface.
// Every request gets a request id and an access log line.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	// Probes
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("GET /ready", h.ReadyCheck)

	// Stateless capability relays
	h.router.HandleFunc("/api", h.GenerateSymphony)
	h.router.HandleFunc("POST /api/soundtrack", h.FindSoundtrack)

	// Session state machine
	h.router.HandleFunc("POST /api/sessions", h.CreateSession)
	h.router.HandleFunc("GET /api/sessions/{id}", h.GetSession)
	h.router.HandleFunc("POST /api/sessions/{id}/generate", h.StartGeneration)
	h.router.HandleFunc("POST /api/sessions/{id}/soundtrack", h.FindSessionTrack)
	h.router.HandleFunc("PUT /api/sessions/{id}/image", h.CaptureImage)
	h.router.HandleFunc("DELETE /api/sessions/{id}/image", h.RemoveImage)

	if h.ui != nil {
		h.router.Handle("/", h.ui)
	}
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Aura is listening 🎶"})
}

// ReadyCheck reports whether the session store can be reached.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

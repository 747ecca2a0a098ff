package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/aura/internal/capture"
	"github.com/ewilliams-labs/aura/internal/core/domain"
)

type startGenerationRequest struct {
	Text string `json:"text"`
}

type captureImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

// CreateSession handles POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.NewSession(r.Context())
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// GetSession handles GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StartGeneration handles POST /api/sessions/{id}/generate
func (h *Handler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	var req startGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.svc.StartGeneration(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeSession(w, s)
}

// FindSessionTrack handles POST /api/sessions/{id}/soundtrack
func (h *Handler) FindSessionTrack(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.FindTrack(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeSession(w, s)
}

// CaptureImage handles PUT /api/sessions/{id}/image
func (h *Handler) CaptureImage(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBodyBytes)
	var req captureImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	dataURL, err := capture.EncodeDataURL(req.ImageBase64, capture.DefaultMaxDimension)
	if errors.Is(err, capture.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	s, err := h.svc.CaptureImage(r.Context(), r.PathValue("id"), dataURL)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// RemoveImage handles DELETE /api/sessions/{id}/image
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.RemoveImage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// writeSession answers 202 while the capability call is still queued or
// running, 200 once it has resolved.
func writeSession(w http.ResponseWriter, s domain.Session) {
	status := http.StatusOK
	if s.GenerationStatus == domain.StatusLoading || s.TrackStatus == domain.StatusLoading {
		status = http.StatusAccepted
	}
	writeJSON(w, status, s)
}

func (h *Handler) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, domain.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "imageBase64 is not a valid base64 image")
	case errors.Is(err, domain.ErrBusy):
		writeErrorWithCode(w, http.StatusConflict, "a request is already in progress", errCodeBusy)
	case errors.Is(err, domain.ErrNoSymphony):
		writeErrorWithCode(w, http.StatusConflict, "generate a symphony first", errCodeNoSymphony)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("session_id", r.PathValue("id")).Msg("Session request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

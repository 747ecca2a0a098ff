package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/ewilliams-labs/aura/internal/capture"
)

const (
	errCodeNoTrackFound = "NO_TRACK_FOUND"
	errCodeBusy         = "BUSY"
	errCodeNoSymphony   = "NO_SYMPHONY"
)

// maxImageBodyBytes bounds JSON bodies that may carry an image data URL.
const maxImageBodyBytes = capture.MaxDataURLBytes + 64<<10

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// isJSONContentType accepts application/json with or without parameters.
func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// writeDecodeError answers 413 for bodies cut off by http.MaxBytesReader and
// 400 for anything else that failed to decode.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request body")
}

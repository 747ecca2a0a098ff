package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

const unknownAIError = "An unknown error occurred while communicating with the AI."

type emotionInputBody struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64"`
}

type generateSymphonyRequest struct {
	Input *emotionInputBody `json:"input"`
}

type findSoundtrackRequest struct {
	Symphony *domain.Symphony `json:"symphony"`
}

// GenerateSymphony handles /api. Only POST is accepted.
func (h *Handler) GenerateSymphony(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBodyBytes)
	var req generateSymphonyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, "Missing input in request body")
		return
	}

	sym, err := h.svc.Compose(r.Context(), domain.EmotionInput{
		Text:        req.Input.Text,
		ImageBase64: req.Input.ImageBase64,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Error calling Gemini API")
		if errors.Is(err, domain.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "imageBase64 is not a valid base64 image")
			return
		}
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) && genErr.Kind == domain.KindConfiguration {
			writeError(w, http.StatusInternalServerError, genErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, unknownAIError)
		return
	}

	writeJSON(w, http.StatusOK, sym)
}

// FindSoundtrack handles POST /api/soundtrack
func (h *Handler) FindSoundtrack(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req findSoundtrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symphony == nil || req.Symphony.PrimaryMoodKeyword == "" {
		writeError(w, http.StatusBadRequest, "symphony.primaryMoodKeyword is required")
		return
	}

	track, err := h.svc.FindSoundtrack(r.Context(), *req.Symphony)
	if err != nil {
		var searchErr *domain.TrackSearchError
		if errors.Is(err, domain.ErrEmptyResult) && errors.As(err, &searchErr) {
			writeErrorWithCode(w, http.StatusNotFound, searchErr.Message, errCodeNoTrackFound)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Track search failed")
		if errors.As(err, &searchErr) {
			writeError(w, http.StatusBadGateway, searchErr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, "Could not connect to the music service. Please try again later.")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

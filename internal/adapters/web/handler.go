// Package web serves the server-rendered mood therapy page. Each visitor is
// bound to a session by cookie; form posts drive the session state machine
// and redirect back to the page, which refreshes itself while work is in
// flight.
package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/aura/internal/capture"
	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/services"
)

// CookieName holds the visitor's session id.
const CookieName = "aura_session"

//go:embed templates/*.html static/*
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/page.html"))

// Handler manages the HTML interface.
type Handler struct {
	svc          *services.Orchestrator
	router       *http.ServeMux
	secureCookie bool
}

// NewHandler initializes the HTML adapter and sets up routes. secureCookie
// should be set when served over TLS.
func NewHandler(svc *services.Orchestrator, secureCookie bool) *Handler {
	h := &Handler{
		svc:          svc,
		router:       http.NewServeMux(),
		secureCookie: secureCookie,
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	static, _ := fs.Sub(assets, "static")
	h.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	h.router.HandleFunc("GET /{$}", h.Index)
	h.router.HandleFunc("POST /generate", h.Generate)
	h.router.HandleFunc("POST /soundtrack", h.FindTrack)
	h.router.HandleFunc("POST /image", h.UploadImage)
	h.router.HandleFunc("POST /image/delete", h.RemoveImage)
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page := BuildPage(s, Notice(r.URL.Query().Get("notice")))
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Generate handles POST /generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, err = h.svc.StartGeneration(r.Context(), s.ID, r.FormValue("text"))
	h.redirect(w, r, err)
}

// FindTrack handles POST /soundtrack
func (h *Handler) FindTrack(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, err = h.svc.FindTrack(r.Context(), s.ID)
	h.redirect(w, r, err)
}

// UploadImage handles POST /image
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, capture.MaxUploadBytes+(1<<20))
	file, _, err := r.FormFile("image")
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("web: unreadable image upload")
		h.redirect(w, r, domain.ErrInvalidImage)
		return
	}
	defer file.Close()

	dataURL, err := capture.Encode(file, capture.DefaultMaxDimension)
	if errors.Is(err, capture.ErrTooLarge) {
		err = domain.ErrInvalidImage
	}
	if err != nil {
		h.redirect(w, r, err)
		return
	}
	_, err = h.svc.CaptureImage(r.Context(), s.ID, dataURL)
	h.redirect(w, r, err)
}

// RemoveImage handles POST /image/delete
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, err = h.svc.RemoveImage(r.Context(), s.ID)
	h.redirect(w, r, err)
}

// session loads the visitor's session, starting a new one when the cookie
// is missing or points at a purged session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (domain.Session, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		s, err := h.svc.GetSession(r.Context(), c.Value)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, err
		}
	}

	s, err := h.svc.NewSession(r.Context())
	if err != nil {
		return domain.Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	zerolog.Ctx(r.Context()).Info().Str("session_id", s.ID).Msg("web: new visitor session")
	return s, nil
}

// redirect sends the browser back to the page, carrying a notice for
// rejected actions.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, err error) {
	target := "/"
	var notice Notice
	switch {
	case err == nil, errors.Is(err, domain.ErrNoSymphony):
	case errors.Is(err, domain.ErrEmptyInput):
		notice = NoticeEmptyText
	case errors.Is(err, domain.ErrBusy):
		notice = NoticeBusy
	case errors.Is(err, domain.ErrInvalidImage):
		notice = NoticeInvalidImage
	default:
		h.fail(w, r, err)
		return
	}
	if notice != NoticeNone {
		target += "?notice=" + url.QueryEscape(string(notice))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("web: request failed")
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

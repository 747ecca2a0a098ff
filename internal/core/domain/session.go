package domain

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle of one capability attempt.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Session is the UI state of one visitor.
type Session struct {
	ID               string    `json:"id"`
	Text             string    `json:"text,omitempty"`
	Symphony         *Symphony `json:"symphony,omitempty"`
	GenerationStatus Status    `json:"generationStatus"`
	GenerationError  string    `json:"generationError,omitempty"`
	CapturedImage    string    `json:"capturedImage,omitempty"`
	Track            *Track    `json:"track,omitempty"`
	TrackStatus      Status    `json:"trackStatus"`
	TrackError       string    `json:"trackError,omitempty"`
	GenerationSeq    uint64    `json:"generationSeq"`
	TrackSeq         uint64    `json:"trackSeq"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func NewSession(id string, now time.Time) (Session, error) {
	if id == "" {
		return Session{}, errors.New("domain: invalid argument")
	}
	return Session{
		ID:               id,
		GenerationStatus: StatusIdle,
		TrackStatus:      StatusIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// InFlight reports whether a generation or track search is loading.
func (s Session) InFlight() bool {
	return s.GenerationStatus == StatusLoading || s.TrackStatus == StatusLoading
}

// EmotionInput builds the generation request for the current text and capture.
func (s Session) EmotionInput() EmotionInput {
	return EmotionInput{Text: s.Text, ImageBase64: s.CapturedImage}
}

// Event is a discrete user action or a resolved capability call.
type Event interface {
	apply(Session) (Session, error)
}

type GenerationRequested struct{ Text string }

type GenerationSucceeded struct {
	Seq      uint64
	Symphony Symphony
}

type GenerationFailed struct {
	Seq     uint64
	Message string
}

type TrackRequested struct{}

type TrackFound struct {
	Seq   uint64
	Track Track
}

type TrackFailed struct {
	Seq     uint64
	Message string
}

type ImageCaptured struct{ DataURL string }

type ImageRemoved struct{}

// RequestsAbandoned fails every request still loading. Results that arrive
// later for those requests are dropped.
type RequestsAbandoned struct{ Message string }

// Apply returns the state following ev. On a guard violation the
// original state is returned unchanged together with the error.
func Apply(s Session, ev Event) (Session, error) {
	next, err := ev.apply(s)
	if err != nil {
		return s, err
	}
	return next, nil
}

func (e GenerationRequested) apply(s Session) (Session, error) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return s, ErrEmptyInput
	}
	if s.GenerationStatus == StatusLoading {
		return s, ErrBusy
	}
	s.Text = text
	s.Symphony = nil
	s.GenerationError = ""
	s.GenerationStatus = StatusLoading
	s.Track = nil
	s.TrackError = ""
	s.TrackStatus = StatusIdle
	s.GenerationSeq++
	// invalidates any track search still in flight for the old symphony
	s.TrackSeq++
	return s, nil
}

func (e GenerationSucceeded) apply(s Session) (Session, error) {
	if e.Seq != s.GenerationSeq || s.GenerationStatus != StatusLoading {
		return s, nil
	}
	sym := e.Symphony
	s.Symphony = &sym
	s.GenerationStatus = StatusSuccess
	s.GenerationError = ""
	return s, nil
}

func (e GenerationFailed) apply(s Session) (Session, error) {
	if e.Seq != s.GenerationSeq || s.GenerationStatus != StatusLoading {
		return s, nil
	}
	s.GenerationStatus = StatusError
	s.GenerationError = e.Message
	return s, nil
}

func (TrackRequested) apply(s Session) (Session, error) {
	if s.Symphony == nil {
		return s, ErrNoSymphony
	}
	if s.TrackStatus == StatusLoading {
		return s, ErrBusy
	}
	s.TrackStatus = StatusLoading
	s.Track = nil
	s.TrackError = ""
	s.TrackSeq++
	return s, nil
}

func (e TrackFound) apply(s Session) (Session, error) {
	if e.Seq != s.TrackSeq || s.TrackStatus != StatusLoading {
		return s, nil
	}
	t := e.Track
	s.Track = &t
	s.TrackStatus = StatusSuccess
	s.TrackError = ""
	return s, nil
}

func (e TrackFailed) apply(s Session) (Session, error) {
	if e.Seq != s.TrackSeq || s.TrackStatus != StatusLoading {
		return s, nil
	}
	s.TrackStatus = StatusError
	s.TrackError = e.Message
	return s, nil
}

func (e ImageCaptured) apply(s Session) (Session, error) {
	if _, err := DecodeDataURL(e.DataURL); err != nil {
		return s, err
	}
	s.CapturedImage = e.DataURL
	return s, nil
}

func (ImageRemoved) apply(s Session) (Session, error) {
	s.CapturedImage = ""
	return s, nil
}

func (e RequestsAbandoned) apply(s Session) (Session, error) {
	if s.GenerationStatus == StatusLoading {
		s.GenerationStatus = StatusError
		s.GenerationError = e.Message
		s.GenerationSeq++
	}
	if s.TrackStatus == StatusLoading {
		s.TrackStatus = StatusError
		s.TrackError = e.Message
		s.TrackSeq++
	}
	return s, nil
}

package web

import (
	"html/template"
	"strings"

	"github.com/samber/lo"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

// ResultKind selects what the result area shows. Exactly one applies.
type ResultKind int

const (
	ResultEmpty ResultKind = iota
	ResultLoading
	ResultError
	ResultSymphony
)

// Notice is a one-off message shown above the input panel.
type Notice string

const (
	NoticeNone         Notice = ""
	NoticeInvalidImage Notice = "image"
	NoticeEmptyText    Notice = "empty"
	NoticeBusy         Notice = "busy"
)

var noticeText = map[Notice]string{
	NoticeInvalidImage: "That file could not be read as an image. Please try another photo.",
	NoticeEmptyText:    "Please describe how you are feeling before generating.",
	NoticeBusy:         "Aura is still working on your last request.",
}

// Page is the view model rendered by page.html.
type Page struct {
	Text          string
	CapturedImage template.URL // empty when no capture is attached
	Composing     bool         // generate trigger disabled
	Notice        string

	Result          ResultKind
	GenerationError string
	Symphony        *SymphonyView

	// Refresh is set while any capability call is in flight.
	Refresh bool
}

type SymphonyView struct {
	Title               string
	MoodAndGoal         string
	CompositionalStyle  string
	Instrumentation     []string
	TherapeuticElements []string

	FindingTrack bool // find-track trigger disabled
	TrackError   string
	Track        *TrackView
}

type TrackView struct {
	Title  string
	Artist string
	URL    string
}

func (p Page) ShowLoading() bool  { return p.Result == ResultLoading }
func (p Page) ShowError() bool    { return p.Result == ResultError }
func (p Page) ShowSymphony() bool { return p.Result == ResultSymphony }

// BuildPage derives the view model from a session.
func BuildPage(s domain.Session, notice Notice) Page {
	p := Page{
		Text:          s.Text,
		CapturedImage: imageURL(s.CapturedImage),
		Composing:     s.GenerationStatus == domain.StatusLoading,
		Notice:        noticeText[notice],
		Refresh:       s.GenerationStatus == domain.StatusLoading || s.TrackStatus == domain.StatusLoading,
	}

	switch {
	case s.GenerationStatus == domain.StatusLoading:
		p.Result = ResultLoading
	case s.GenerationStatus == domain.StatusError:
		p.Result = ResultError
		p.GenerationError = s.GenerationError
	case s.Symphony != nil:
		p.Result = ResultSymphony
		p.Symphony = symphonyView(s)
	default:
		p.Result = ResultEmpty
	}
	return p
}

func symphonyView(s domain.Session) *SymphonyView {
	sym := s.Symphony
	v := &SymphonyView{
		Title:               sym.Title,
		MoodAndGoal:         sym.MoodAndGoal,
		CompositionalStyle:  sym.CompositionalStyle,
		Instrumentation:     lo.Compact(sym.Instrumentation),
		TherapeuticElements: lo.Compact(sym.TherapeuticElements),
		FindingTrack:        s.TrackStatus == domain.StatusLoading,
	}
	switch s.TrackStatus {
	case domain.StatusSuccess:
		if s.Track != nil {
			v.Track = &TrackView{Title: s.Track.Title, Artist: s.Track.Artist, URL: s.Track.URL}
		}
	case domain.StatusError:
		v.TrackError = s.TrackError
	}
	return v
}

// imageURL marks a stored capture safe for an img src. Bare base64 payloads
// are given the JPEG prefix.
func imageURL(capture string) template.URL {
	if capture == "" {
		return ""
	}
	if strings.HasPrefix(capture, "data:image/") {
		return template.URL(capture)
	}
	return template.URL("data:" + domain.ImageMIMEType + ";base64," + capture)
}

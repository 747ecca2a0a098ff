package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("domain: not found")
	ErrEmptyInput   = errors.New("domain: emotion text is required")
	ErrBusy         = errors.New("domain: request already in progress")
	ErrNoSymphony   = errors.New("domain: no symphony to match")
	ErrInvalidImage = errors.New("domain: invalid image data")
)

// Error kinds shared by both capabilities. Match them with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrEmptyResult       = errors.New("empty result")
)

// ErrorKind classifies a capability failure.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindConfiguration
	KindMalformedResponse
	KindEmptyResult
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindEmptyResult:
		return ErrEmptyResult
	default:
		return ErrTransport
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// GenerationError is returned by a SymphonyComposer.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// TrackSearchError is returned by a TrackFinder.
type TrackSearchError struct {
	Kind    ErrorKind
	Keyword string
	Message string
	Err     error
}

func (e *TrackSearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TrackSearchError) Unwrap() error { return e.Err }

func (e *TrackSearchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ImageMIMEType is the MIME type attached to every forwarded image.
const ImageMIMEType = "image/jpeg"

// EmotionInput is a single generation request.
type EmotionInput struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64,omitempty"` // data URL, empty when absent
}

// HasImage reports whether an image accompanies the text.
func (in EmotionInput) HasImage() bool {
	return in.ImageBase64 != ""
}

// ImagePayload decodes the bytes after the comma of the image data URL.
// A value without a comma is treated as bare base64.
func (in EmotionInput) ImagePayload() ([]byte, error) {
	return DecodeDataURL(in.ImageBase64)
}

// DecodeDataURL returns the binary payload of a base64 data URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	payload := dataURL
	if _, after, found := strings.Cut(dataURL, ","); found {
		payload = after
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, nil
}

// Package capture turns an uploaded photo into the JPEG data URL stored on a
// session and sent to the composer.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

const (
	// DefaultMaxDimension bounds the width and height of a capture.
	DefaultMaxDimension = 1024
	// MaxUploadBytes is the largest upload accepted.
	MaxUploadBytes = 10 << 20
	// MaxDataURLBytes bounds a base64 data URL carrying MaxUploadBytes,
	// including a generous allowance for the "data:...;base64," header.
	MaxDataURLBytes = (MaxUploadBytes+2)/3*4 + 256

	jpegQuality = 85
)

// ErrTooLarge is returned when the upload exceeds MaxUploadBytes.
var ErrTooLarge = errors.New("capture: image exceeds upload limit")

// Encode decodes a JPEG, PNG, GIF or WebP image, downscales it so neither
// side exceeds maxDim and returns it as a data:image/jpeg;base64 URL.
func Encode(r io.Reader, maxDim int) (string, error) {
	if maxDim < 1 {
		maxDim = DefaultMaxDimension
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("capture: read image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := scaledDimensions(origWidth, origHeight, maxDim)

	out := img
	if newWidth != origWidth || newHeight != origHeight {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("capture: encode jpeg: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Capture encoded")

	return "data:" + domain.ImageMIMEType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeDataURL is Encode for an image already held as a base64 data URL
// (or bare base64). The declared MIME type is ignored; the payload is
// decoded and re-encoded as JPEG.
func EncodeDataURL(dataURL string, maxDim int) (string, error) {
	if len(dataURL) > MaxDataURLBytes {
		return "", ErrTooLarge
	}
	data, err := domain.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return Encode(bytes.NewReader(data), maxDim)
}

// scaledDimensions keeps the aspect ratio and never upscales.
func scaledDimensions(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width >= height {
		h := height * maxDim / width
		if h < 1 {
			h = 1
		}
		return maxDim, h
	}
	w := width * maxDim / height
	if w < 1 {
		w = 1
	}
	return w, maxDim
}

package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/ewilliams-labs/aura/internal/core/domain"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		maxDim     int
		wantErr    error
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "small image kept at size",
			input:      pngBytes(t, 40, 20),
			maxDim:     64,
			wantWidth:  40,
			wantHeight: 20,
		},
		{
			name:       "landscape downscaled",
			input:      pngBytes(t, 200, 100),
			maxDim:     50,
			wantWidth:  50,
			wantHeight: 25,
		},
		{
			name:       "portrait downscaled",
			input:      pngBytes(t, 100, 400),
			maxDim:     100,
			wantWidth:  25,
			wantHeight: 100,
		},
		{
			name:    "not an image",
			input:   []byte("definitely not pixels"),
			maxDim:  64,
			wantErr: domain.ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(bytes.NewReader(tt.input), tt.maxDim)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			const prefix = "data:image/jpeg;base64,"
			if !strings.HasPrefix(got, prefix) {
				t.Fatalf("expected jpeg data URL, got %.40s", got)
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, prefix))
			if err != nil {
				t.Fatalf("decode base64: %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("decode jpeg config: %v", err)
			}
			if cfg.Width != tt.wantWidth || cfg.Height != tt.wantHeight {
				t.Fatalf("expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, cfg.Width, cfg.Height)
			}

			// The result must be accepted as a session capture.
			if _, err := domain.DecodeDataURL(got); err != nil {
				t.Fatalf("data URL rejected: %v", err)
			}
		})
	}
}

func TestEncode_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte{0}, MaxUploadBytes+1)
	if _, err := Encode(bytes.NewReader(big), 0); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestEncodeDataURL(t *testing.T) {
	pngURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 300, 150))

	tests := []struct {
		name    string
		dataURL string
		wantErr error
	}{
		{name: "png data URL re-encoded", dataURL: pngURL},
		{name: "bare base64", dataURL: strings.TrimPrefix(pngURL, "data:image/png;base64,")},
		{name: "not base64", dataURL: "data:image/jpeg;base64,%%%", wantErr: domain.ErrInvalidImage},
		{name: "base64 of non-image bytes", dataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: domain.ErrInvalidImage},
		{name: "oversized", dataURL: "data:image/png;base64," + strings.Repeat("A", MaxDataURLBytes), wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeDataURL(tt.dataURL, 100)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			raw, err := domain.DecodeDataURL(got)
			if err != nil {
				t.Fatalf("data URL rejected: %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("expected jpeg output: %v", err)
			}
			if cfg.Width != 100 || cfg.Height != 50 {
				t.Fatalf("expected 100x50, got %dx%d", cfg.Width, cfg.Height)
			}
		})
	}
}

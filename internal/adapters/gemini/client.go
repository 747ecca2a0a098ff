// Package gemini provides the symphony composer backed by the Gemini API.
// It sends the user's text and optional photo to the model and normalizes
// the JSON description it returns into a domain.Symphony.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/ports"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

const (
	temperature = 0.8
	topP        = 0.95
)

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string // optional endpoint override
	HTTPClient *http.Client
}

// Client implements ports.SymphonyComposer.
type Client struct {
	genai *genai.Client // nil when no API key is configured
	model string
}

var _ ports.SymphonyComposer = (*Client)(nil)

// NewClient builds a Client. A missing API key is not an error here: the
// client is returned unconfigured and every Compose call reports a
// configuration error without contacting the backend.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model}
	if opts.APIKey == "" {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(opts.BaseURL, "/") + "/"
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.genai = client
	return c, nil
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.genai != nil
}

// Compose sends one generation request and normalizes the answer.
func (c *Client) Compose(ctx context.Context, in domain.EmotionInput) (domain.Symphony, error) {
	logger := zerolog.Ctx(ctx)
	if c.genai == nil {
		return domain.Symphony{}, &domain.GenerationError{
			Kind:    domain.KindConfiguration,
			Message: "GEMINI_API_KEY is not configured on the server",
		}
	}

	parts, err := buildParts(in)
	if err != nil {
		return domain.Symphony{}, fmt.Errorf("gemini: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](temperature),
		TopP:             genai.Ptr[float32](topP),
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	logger.Debug().
		Str("model", c.model).
		Int("text_length", len(in.Text)).
		Bool("has_image", in.HasImage()).
		Msg("Starting Gemini API call for symphony generation")

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, config)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("Failed to generate symphony from Gemini")
		return domain.Symphony{}, &domain.GenerationError{Kind: domain.KindTransport, Message: "the AI service request failed", Err: err}
	}
	if resp == nil {
		return domain.Symphony{}, &domain.GenerationError{Kind: domain.KindMalformedResponse, Message: "received empty response from the AI service"}
	}

	text := resp.Text()
	logger.Debug().
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Gemini API response received for symphony generation")

	sym, err := parseSymphony(text)
	if err != nil {
		return domain.Symphony{}, &domain.GenerationError{Kind: domain.KindMalformedResponse, Message: "the AI returned an unreadable symphony", Err: err}
	}
	return sym, nil
}

// buildParts orders the request as image, user text, instruction.
func buildParts(in domain.EmotionInput) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, 3)
	if in.HasImage() {
		data, err := in.ImagePayload()
		if err != nil {
			return nil, err
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: domain.ImageMIMEType,
				Data:     data,
			},
		})
	}
	parts = append(parts,
		&genai.Part{Text: in.Text},
		&genai.Part{Text: analysisInstruction},
	)
	return parts, nil
}

func parseSymphony(text string) (domain.Symphony, error) {
	body := stripFence(text)
	if body == "" {
		return domain.Symphony{}, errors.New("empty response text")
	}
	var raw domain.RawSymphony
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		preview := body
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return domain.Symphony{}, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return domain.NormalizeSymphony(raw), nil
}

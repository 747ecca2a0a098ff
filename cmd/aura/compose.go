package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/aura/internal/adapters/deezer"
	"github.com/ewilliams-labs/aura/internal/adapters/gemini"
	"github.com/ewilliams-labs/aura/internal/capture"
	"github.com/ewilliams-labs/aura/internal/core/domain"
	"github.com/ewilliams-labs/aura/internal/core/services"
)

var (
	textFlag      string
	imageFlag     string
	findTrackFlag bool
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose one symphony and print it as JSON",
	RunE:  runCompose,
}

func init() {
	composeCmd.Flags().StringVarP(&textFlag, "text", "t", "", "How you are feeling right now")
	composeCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Optional photo for visual context")
	composeCmd.Flags().BoolVar(&findTrackFlag, "find-track", false, "Also search a matching soundtrack")
	_ = composeCmd.MarkFlagRequired("text")
}

type composeOutput struct {
	Symphony   domain.Symphony `json:"symphony"`
	Track      *domain.Track   `json:"track,omitempty"`
	TrackError string          `json:"trackError,omitempty"`
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cmd, cfg)
	ctx := cmd.Context()

	in := domain.EmotionInput{Text: textFlag}
	if imageFlag != "" {
		f, err := os.Open(imageFlag)
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		in.ImageBase64, err = capture.Encode(f, capture.DefaultMaxDimension)
		f.Close()
		if err != nil {
			return fmt.Errorf("read image %s: %w", imageFlag, err)
		}
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	composer, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: httpClient,
	})
	if err != nil {
		return err
	}
	finder := deezer.NewClient(httpClient, cfg.DeezerBaseURL, cfg.TrackRelayURL)
	svc := services.NewOrchestrator(composer, finder, nil, nil)

	sym, err := svc.Compose(ctx, in)
	if err != nil {
		return err
	}
	out := composeOutput{Symphony: sym}

	if findTrackFlag {
		track, err := svc.FindSoundtrack(ctx, sym)
		if err != nil {
			out.TrackError = err.Error()
		} else {
			out.Track = &track
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

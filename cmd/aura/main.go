// Command aura serves the symphonic mood therapy app and offers a one-shot
// composer for the terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/aura/internal/config"
	"github.com/ewilliams-labs/aura/internal/logging"
)

// Shared flags. Each overrides the matching environment variable when set.
var (
	logLevelFlag string
	prettyFlag   bool
	modelFlag    string
	relayFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Compose therapeutic symphonies from how you feel",
	Long: `Aura turns a description of your emotional state, and optionally a photo,
into the description of a therapeutic symphony, then finds a real track that
matches its mood.

Examples:
  aura serve --addr :8080
  aura compose --text "I feel overwhelmed by work" --find-track
  aura compose -t "quietly hopeful" --image selfie.jpg`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (env AURA_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "Human-readable console logs instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use (env GEMINI_MODEL)")
	rootCmd.PersistentFlags().StringVar(&relayFlag, "relay", "", "Prefix to route track searches through, e.g. https://corsproxy.io/? (env TRACK_RELAY_URL)")

	rootCmd.AddCommand(serveCmd, composeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the shared flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if flags.Changed("model") {
		cfg.GeminiModel = modelFlag
	}
	if flags.Changed("relay") {
		cfg.TrackRelayURL = relayFlag
	}
	return cfg, nil
}

// initLogging configures the global logger from cfg and the --pretty flag,
// writing to the command's stderr.
func initLogging(cmd *cobra.Command, cfg config.Config) {
	logging.InitWriter(cmd.ErrOrStderr(), cfg.LogLevel, prettyFlag)
}

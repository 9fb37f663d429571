// Package main provides the recorder CLI: local recording from the default
// capture devices, offline transcription of WAV files, and text analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Global flags
var (
	outputFormat string
	verbose      bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "recorder",
		Short: "Record, transcribe and analyze meetings",
		Long: `recorder drives the meeting recorder from a terminal.

Configuration is read from the environment and from a .env file in the
working directory, the same variables the server uses (STT_PROVIDER,
DEEPGRAM_API_KEY, MISTRAL_API_KEY, STORAGE_BACKEND, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case formatText, formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("invalid output format %q: use text, json or yaml", outputFormat)
			}
		},
	}

	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, json, yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newRecordCommand(),
		newTranscribeCommand(),
		newAnalyzeCommand(),
		newHealthCommand(),
	)
	return root
}

// loadConfig reads configuration and returns a logger writing to stderr so
// that stdout carries only command output.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := observability.ParseLevel(cfg.LogLevel)
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return cfg, logger, nil
}

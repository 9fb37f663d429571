package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/recording"
	"github.com/lexiqai/meeting-recorder/internal/speaker"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/spf13/cobra"
)

var transcribeStart string

func newTranscribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a WAV recording with the configured provider",
		Long: `Transcribe sends a 16-bit PCM WAV file to the configured speech-to-text
provider and prints the attributed transcript with its minutes.

Segment timestamps are offsets from --start, which defaults to the file's
modification time.`,
		Args: cobra.ExactArgs(1),
		RunE: runTranscribe,
	}
	cmd.Flags().StringVar(&transcribeStart, "start", "", "Recording start time (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, _, err := audio.DecodeWAV(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	startedAt, err := parseReferenceTime(transcribeStart, info.ModTime())
	if err != nil {
		return err
	}

	provider, err := stt.NewProvider(cfg)
	if err != nil {
		return err
	}
	key := cfg.ProviderAPIKey()
	if config.IsPlaceholderKey(key) {
		return &recording.ConfigurationError{Provider: provider.Name(), Message: "API key is missing or a placeholder"}
	}

	logger.Info().Str("file", path).Str("provider", provider.Name()).Int("bytes", len(data)).Msg("Transcribing")
	t0 := time.Now()
	segments, err := provider.Transcribe(cmd.Context(), data, key)
	if err == nil && len(segments) == 0 {
		err = stt.ErrNoSpeech
	}
	if err != nil {
		return &recording.TranscriptionError{Provider: provider.Name(), Err: err}
	}
	logger.Debug().Int("segments", len(segments)).Dur("elapsed", time.Since(t0)).Msg("Transcription complete")

	var registry *speaker.Registry
	if cfg.SpeakerIdentificationEnabled {
		registry = speaker.NewRegistry()
	}
	transcript := recording.NewPipeline(registry, cfg.SpeakerIdentificationEnabled, logger).
		Process(startedAt, segments, nil)

	return render(cmd.OutOrStdout(), outputFormat, transcript, func(w io.Writer) error {
		return writeTranscript(w, transcript)
	})
}

func writeTranscript(w io.Writer, t *recording.Transcript) error {
	if _, err := fmt.Fprintln(w, t.Text()); err != nil {
		return err
	}
	if t.Minutes == nil {
		return nil
	}

	m := t.Minutes
	if len(m.Participants) > 0 {
		fmt.Fprintln(w, "\nParticipants:")
		for _, p := range m.Participants {
			fmt.Fprintf(w, "  - %s\n", p.Name)
		}
	}
	if len(m.ActionItems) > 0 {
		fmt.Fprintln(w, "\nAction items:")
		for _, a := range m.ActionItems {
			fmt.Fprintf(w, "  - %s\n", a.Task)
		}
	}
	if len(m.AgendaItems) > 0 {
		fmt.Fprintln(w, "\nDecisions:")
		for _, a := range m.AgendaItems {
			if a.Decision != "" {
				fmt.Fprintf(w, "  - %s: %s\n", a.Title, a.Decision)
			}
		}
	}
	if len(m.NextSteps) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for _, s := range m.NextSteps {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(t.CalendarIntents) > 0 {
		fmt.Fprintln(w, "\nCalendar:")
		for _, ci := range t.CalendarIntents {
			if ci.StartTime != nil {
				fmt.Fprintf(w, "  - %s %s\n", ci.StartTime.Format("2006-01-02 15:04"), ci.Title)
			}
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/audio/device"
	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/quota"
	"github.com/lexiqai/meeting-recorder/internal/recording"
	"github.com/lexiqai/meeting-recorder/internal/storage"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/spf13/cobra"
)

var (
	recordMeetingID   string
	recordDuration    time.Duration
	recordSystemAudio bool
)

type stopped struct {
	result *recording.Result
	err    error
}

func newRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the local microphone until interrupted",
		Long: `Record captures the default microphone, and optionally a loopback device
carrying system audio, until Ctrl-C, --duration or the size cap ends the
recording. The audio is then transcribed, analyzed and saved to the
configured store.`,
		Example: `  recorder record --meeting-id weekly-sync
  recorder record --duration 30m --system-audio -o json`,
		RunE: runRecord,
	}
	cmd.Flags().StringVar(&recordMeetingID, "meeting-id", "", "Meeting identifier stored with the transcript")
	cmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 records until interrupted)")
	cmd.Flags().BoolVar(&recordSystemAudio, "system-audio", false, "Also capture system audio from a loopback device")
	return cmd
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("system-audio") {
		cfg.SystemAudioEnabled = recordSystemAudio
	}

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	devices, err := device.NewDevices(cfg.SampleRate, logger)
	if err != nil {
		return err
	}
	defer devices.Close()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := stt.NewProvider(cfg)
	if err != nil {
		return err
	}

	var gate quota.Gate = quota.Unlimited
	redisGate, err := quota.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	if redisGate != nil {
		defer redisGate.Close()
		gate = redisGate
	}

	var newLive func(int) stt.LiveListener
	if cfg.LiveCaptionsEnabled && cfg.STTProvider == config.ProviderDeepgram {
		newLive = func(sampleRate int) stt.LiveListener {
			return stt.NewDeepgramLive(cfg, sampleRate, logger)
		}
	}

	done := make(chan stopped, 1)
	orch, err := recording.New(recording.Options{
		Config:          cfg,
		Devices:         devices,
		Provider:        provider,
		Store:           store,
		Quota:           gate,
		NewLiveListener: newLive,
		Events: recording.Events{
			OnWarning: func(msg string) { fmt.Fprintln(stderr, "warning:", msg) },
			OnSpeech:  func(audio.SpeechOnset) { logger.Debug().Msg("Speech detected") },
			OnCaption: func(c *stt.Caption) {
				if c.IsFinal {
					fmt.Fprintln(stderr, ">", c.Text)
				}
			},
			OnCapacity: func(e *recording.CapacityError) { fmt.Fprintln(stderr, "warning:", e.Error()) },
			OnStopped:  func(res *recording.Result, err error) { done <- stopped{res, err} },
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if err := orch.Start(ctx, recordMeetingID); err != nil {
		return err
	}
	fmt.Fprintln(stderr, "Recording... press Ctrl-C to stop.")

	var timeout <-chan time.Time
	if recordDuration > 0 {
		timer := time.NewTimer(recordDuration)
		defer timer.Stop()
		timeout = timer.C
	}

	var out stopped
	select {
	case out = <-done:
		// The size cap stopped the recording on its own
	case <-ctx.Done():
		out = stopAndWait(stderr, orch, done)
	case <-timeout:
		out = stopAndWait(stderr, orch, done)
	}

	if out.result == nil {
		return out.err
	}
	if err := render(cmd.OutOrStdout(), outputFormat, out.result, func(w io.Writer) error {
		return writeResult(w, out.result)
	}); err != nil {
		return err
	}
	return out.err
}

func stopAndWait(stderr io.Writer, orch *recording.Orchestrator, done <-chan stopped) stopped {
	fmt.Fprintln(stderr, "Stopping, transcribing...")
	// The signal context is already cancelled; the stop sequence gets its own
	_, _ = orch.Stop(context.Background())
	return <-done
}

func writeResult(w io.Writer, res *recording.Result) error {
	fmt.Fprintf(w, "Session:  %s\n", res.SessionID)
	if res.MeetingID != "" {
		fmt.Fprintf(w, "Meeting:  %s\n", res.MeetingID)
	}
	fmt.Fprintf(w, "Started:  %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Audio:    %d bytes\n", res.AudioBytes)
	if res.CapacityReached {
		fmt.Fprintln(w, "          size limit reached")
	}
	if res.AudioPath != "" {
		fmt.Fprintf(w, "Saved to: %s\n", res.AudioPath)
	}
	if res.Discarded {
		fmt.Fprintln(w, "Transcription quota exhausted; recording discarded.")
		return nil
	}
	if res.Transcript == nil {
		return nil
	}
	fmt.Fprintln(w)
	return writeTranscript(w, res.Transcript)
}

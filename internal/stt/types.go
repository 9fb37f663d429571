package stt

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyAudio is returned when there is nothing to transcribe
var ErrEmptyAudio = errors.New("empty audio")

// ErrNoSpeech is returned when the provider found no usable text
var ErrNoSpeech = errors.New("no speech recognized")

// Segment is one stretch of transcribed speech, in provider order
type Segment struct {
	// Speaker is the provider's diarization label, empty when unknown
	Speaker string
	Text    string
	// Start and End are offsets from the beginning of the recording
	Start time.Duration
	End   time.Duration
}

// Provider transcribes a complete recording
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, apiKey string) ([]Segment, error)
}

// Caption represents a live transcription result
type Caption struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// LiveListener streams audio for interim captions while recording
type LiveListener interface {
	// Start opens the streaming session
	Start() error

	// SendAudio sends a PCM16LE chunk
	SendAudio(audioData []byte) error

	// Captions delivers transcription results
	Captions() <-chan *Caption

	// Pause stops forwarding audio without closing the session
	Pause()

	// Resume continues forwarding audio
	Resume()

	// Stop ends the streaming session
	Stop() error

	// Close stops the session and releases resources
	Close() error
}

package recording

import (
	"errors"
	"fmt"
)

// Sentinels for the error taxonomy, matched with errors.Is
var (
	ErrConfiguration = errors.New("configuration error")
	ErrMediaAccess   = errors.New("media access error")
	ErrCapacity      = errors.New("audio size limit exceeded")
	ErrTranscription = errors.New("transcription error")
	ErrPersistence   = errors.New("persistence error")

	// ErrInvalidState is returned for transitions the state machine does not allow
	ErrInvalidState = errors.New("invalid recording state")
)

// ConfigurationError reports a missing or placeholder provider key.
// It is raised before any device is touched.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Provider, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// MediaAccessError reports a capture device that could not be opened
type MediaAccessError struct {
	Device string // "microphone" or "system"
	Err    error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access error: %s: %v", e.Device, e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

func (e *MediaAccessError) Is(target error) bool { return target == ErrMediaAccess }

// CapacityError is published when buffered audio reaches the size cap
type CapacityError struct {
	Limit int64
	Size  int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("audio size limit exceeded: %d of %d bytes buffered", e.Size, e.Limit)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// TranscriptionError wraps a provider failure
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription error: %s: %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func (e *TranscriptionError) Is(target error) bool { return target == ErrTranscription }

// PersistenceError reports a durable store write that failed after retries.
// AudioSaved tells whether the audio made it before the record failed.
type PersistenceError struct {
	AudioSaved bool
	AudioPath  string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.AudioSaved {
		return fmt.Sprintf("persistence error: audio saved at %s but record failed: %v", e.AudioPath, e.Err)
	}
	return fmt.Sprintf("persistence error: nothing saved: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

package recording

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", &ConfigurationError{Provider: "deepgram", Message: "missing key"}, ErrConfiguration},
		{"media access", &MediaAccessError{Device: "microphone", Err: cause}, ErrMediaAccess},
		{"capacity", &CapacityError{Limit: 10, Size: 8}, ErrCapacity},
		{"transcription", &TranscriptionError{Provider: "mistral", Err: cause}, ErrTranscription},
		{"persistence", &PersistenceError{Err: cause}, ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stop: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotEmpty(t, tt.err.Error())

			for _, other := range tests {
				if other.sentinel != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other.sentinel)
				}
			}
		})
	}
}

func TestErrorTaxonomy_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	assert.ErrorIs(t, &MediaAccessError{Err: cause}, cause)
	assert.ErrorIs(t, &TranscriptionError{Err: cause}, cause)
	assert.ErrorIs(t, &PersistenceError{Err: cause}, cause)
}

func TestPersistenceError_Message(t *testing.T) {
	saved := &PersistenceError{AudioSaved: true, AudioPath: "audio/x.wav", Err: errors.New("insert failed")}
	assert.Contains(t, saved.Error(), "audio/x.wav")

	nothing := &PersistenceError{Err: errors.New("upload failed")}
	assert.Contains(t, nothing.Error(), "nothing saved")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "recording", StateRecording.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "state(9)", State(9).String())
}

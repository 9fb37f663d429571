package transport

import (
	"errors"

	"github.com/lexiqai/meeting-recorder/internal/recording"
)

// Client events
const (
	EventStart  = "start"
	EventMedia  = "media"
	EventPause  = "pause"
	EventResume = "resume"
	EventStop   = "stop"
)

// Server events
const (
	EventStarted  = "started"
	EventPaused   = "paused"
	EventResumed  = "resumed"
	EventWarning  = "warning"
	EventNoise    = "noise"
	EventSpeech   = "speech"
	EventCaption  = "caption"
	EventCapacity = "capacity"
	EventResult   = "result"
	EventError    = "error"
)

// ClientMessage is a message from the recording client
type ClientMessage struct {
	Event      string        `json:"event"`
	MeetingID  string        `json:"meetingId,omitempty"`
	SampleRate int           `json:"sampleRate,omitempty"`
	Tracks     []string      `json:"tracks,omitempty"`
	Media      *MediaPayload `json:"media,omitempty"`
}

// MediaPayload carries one block of audio
type MediaPayload struct {
	Track   string `json:"track"`
	Payload string `json:"payload"` // Base64 PCM16LE mono
}

// ServerMessage is a message to the recording client
type ServerMessage struct {
	Event     string            `json:"event"`
	MeetingID string            `json:"meetingId,omitempty"`
	Message   string            `json:"message,omitempty"`
	Noise     *NoisePayload     `json:"noise,omitempty"`
	Speech    *SpeechPayload    `json:"speech,omitempty"`
	Caption   *CaptionPayload   `json:"caption,omitempty"`
	Result    *recording.Result `json:"result,omitempty"`
	Error     *ErrorPayload     `json:"error,omitempty"`
}

// NoisePayload is a background noise sample
type NoisePayload struct {
	LevelDB float64 `json:"levelDb"`
	RMS     float64 `json:"rms"`
	Noisy   bool    `json:"noisy"`
}

// SpeechPayload marks the start of a phrase
type SpeechPayload struct {
	Amplitude float64 `json:"amplitude"`
}

// CaptionPayload is an interim or final live caption
type CaptionPayload struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// ErrorPayload describes a failed operation
type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	AudioSaved bool   `json:"audioSaved,omitempty"`
	AudioPath  string `json:"audioPath,omitempty"`
}

// Error codes
const (
	CodeConfiguration = "configuration"
	CodeMediaAccess   = "media_access"
	CodeCapacity      = "capacity"
	CodeTranscription = "transcription"
	CodePersistence   = "persistence"
	CodeInvalidState  = "invalid_state"
	CodeBadRequest    = "bad_request"
	CodeInternal      = "internal"
)

func errorPayload(err error) *ErrorPayload {
	p := &ErrorPayload{Code: CodeInternal, Message: err.Error()}

	var persistErr *recording.PersistenceError
	switch {
	case errors.Is(err, recording.ErrConfiguration):
		p.Code = CodeConfiguration
	case errors.Is(err, recording.ErrMediaAccess):
		p.Code = CodeMediaAccess
	case errors.Is(err, recording.ErrCapacity):
		p.Code = CodeCapacity
	case errors.Is(err, recording.ErrTranscription):
		p.Code = CodeTranscription
	case errors.As(err, &persistErr):
		p.Code = CodePersistence
		p.AudioSaved = persistErr.AudioSaved
		p.AudioPath = persistErr.AudioPath
	case errors.Is(err, recording.ErrInvalidState):
		p.Code = CodeInvalidState
	}
	return p
}

// Package transport exposes the recording orchestrator over a websocket.
// A browser or desktop client streams PCM audio and control events; the
// server answers with monitoring events and the final result.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/observability"
	"github.com/lexiqai/meeting-recorder/internal/recording"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	// Log every Nth dropped input frame after the first
	droppedWarnEvery = 100
)

var upgrader = websocket.Upgrader{
	// Origin checks are left to the reverse proxy in front of the service
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Factory builds the orchestrator serving one connection
type Factory func(devices audio.MediaDevices, events recording.Events, logger zerolog.Logger) (*recording.Orchestrator, error)

// HandleRecordingWS is the entry point for recording websocket connections.
// defaultSampleRate applies when a start event carries none.
func HandleRecordingWS(factory Factory, defaultSampleRate int, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		session, err := NewSession(conn, factory, defaultSampleRate, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create recording session")
			_ = conn.WriteJSON(ServerMessage{Event: EventError, Error: &ErrorPayload{Code: CodeInternal, Message: err.Error()}})
			return
		}

		session.logger.Info().Msg("Recording connection established")
		session.Run(r.Context())
		session.logger.Info().Msg("Recording connection closed")
	}
}

// Session serves one websocket connection
type Session struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	devices     *Devices
	orch        *recording.Orchestrator
	defaultRate int
	logger      zerolog.Logger

	stops sync.WaitGroup
}

// NewSession wires a connection to a new orchestrator
func NewSession(conn *websocket.Conn, factory Factory, defaultSampleRate int, logger zerolog.Logger) (*Session, error) {
	s := &Session{
		conn:        conn,
		devices:     NewDevices(),
		defaultRate: defaultSampleRate,
		logger:      logger.With().Str("connection_id", observability.NewCorrelationID()).Logger(),
	}

	events := recording.Events{
		OnWarning: func(msg string) {
			s.send(ServerMessage{Event: EventWarning, Message: msg})
		},
		OnNoise: func(n audio.NoiseSample) {
			s.send(ServerMessage{Event: EventNoise, Noise: &NoisePayload{LevelDB: n.LevelDB, RMS: n.RMS, Noisy: n.Noisy}})
		},
		OnSpeech: func(onset audio.SpeechOnset) {
			s.send(ServerMessage{Event: EventSpeech, Speech: &SpeechPayload{Amplitude: onset.Amplitude}})
		},
		OnCaption: func(c *stt.Caption) {
			s.send(ServerMessage{Event: EventCaption, Caption: &CaptionPayload{Text: c.Text, IsFinal: c.IsFinal}})
		},
		OnCapacity: func(e *recording.CapacityError) {
			s.send(ServerMessage{Event: EventCapacity, Message: e.Error()})
		},
		OnStopped: s.onStopped,
	}

	orch, err := factory(s.devices, events, s.logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	s.orch = orch
	return s, nil
}

// Run reads client events until the connection closes. A recording still
// in progress is stopped, and so transcribed and persisted, before Run returns.
func (s *Session) Run(ctx context.Context) {
	defer s.shutdown()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(CodeBadRequest, "malformed message")
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *Session) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Event {
	case EventStart:
		rate := msg.SampleRate
		if rate <= 0 {
			rate = s.defaultRate
		}
		s.devices.Announce(rate, msg.Tracks)
		if err := s.orch.Start(ctx, msg.MeetingID); err != nil {
			s.send(ServerMessage{Event: EventError, Error: errorPayload(err)})
			return
		}
		s.send(ServerMessage{Event: EventStarted, MeetingID: msg.MeetingID})

	case EventMedia:
		if msg.Media == nil {
			s.sendError(CodeBadRequest, "media event without payload")
			return
		}
		s.handleMedia(msg.Media)

	case EventPause:
		if err := s.orch.Pause(); err != nil {
			s.send(ServerMessage{Event: EventError, Error: errorPayload(err)})
			return
		}
		s.send(ServerMessage{Event: EventPaused})

	case EventResume:
		if err := s.orch.Resume(); err != nil {
			s.send(ServerMessage{Event: EventError, Error: errorPayload(err)})
			return
		}
		s.send(ServerMessage{Event: EventResumed})

	case EventStop:
		// The result arrives through OnStopped
		s.stops.Add(1)
		go func() {
			defer s.stops.Done()
			_, _ = s.orch.Stop(context.Background())
		}()

	default:
		s.logger.Debug().Str("event", msg.Event).Msg("Unknown client event")
		s.sendError(CodeBadRequest, fmt.Sprintf("unknown event %q", msg.Event))
	}
}

func (s *Session) handleMedia(media *MediaPayload) {
	data, err := base64.StdEncoding.DecodeString(media.Payload)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to decode base64 audio")
		return
	}

	track := media.Track
	if track == "" {
		track = TrackMicrophone
	}
	delivered, err := s.devices.Push(track, data)
	if errors.Is(err, ErrStreamFull) {
		observability.IncrementDroppedFrames("remote_input")
		if n := s.devices.Dropped(); n == 1 || n%droppedWarnEvery == 0 {
			s.logger.Warn().Str("track", track).Int64("dropped_frames", n).Msg("Recorder falling behind, dropping audio")
		}
		return
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("track", track).Msg("Invalid audio payload")
		return
	}
	if !delivered {
		s.logger.Debug().Str("track", track).Int("bytes", len(data)).Msg("Dropping audio with no open stream")
	}
}

func (s *Session) onStopped(res *recording.Result, err error) {
	if err != nil {
		s.send(ServerMessage{Event: EventError, Result: res, Error: errorPayload(err)})
		return
	}
	s.send(ServerMessage{Event: EventResult, Result: res})
}

func (s *Session) shutdown() {
	if s.orch.State() != recording.StateIdle {
		s.logger.Info().Msg("Connection closed while recording, stopping")
		_, _ = s.orch.Stop(context.Background())
	}
	s.stops.Wait()
}

func (s *Session) sendError(code, message string) {
	s.send(ServerMessage{Event: EventError, Error: &ErrorPayload{Code: code, Message: message}})
}

// send writes one message. Failures are logged; the read loop notices a
// dead connection on its own.
func (s *Session) send(msg ServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Str("event", msg.Event).Msg("Failed to send message")
	}
}

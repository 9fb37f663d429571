package transport

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/recording"
	"github.com/lexiqai/meeting-recorder/internal/storage"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrameSamples = 1600

type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Transcribe(context.Context, []byte, string) ([]stt.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return []stt.Segment{{Speaker: "Speaker 1", Text: "Bom dia a todos."}}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memoryStore struct {
	mu      sync.Mutex
	records int
}

func (s *memoryStore) SaveAudio(context.Context, []byte, string) (string, error) {
	return "audio/test.wav", nil
}

func (s *memoryStore) SaveTranscriptionRecord(_ context.Context, meetingID, audioPath, text string) (*storage.TranscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records++
	return &storage.TranscriptionRecord{ID: "rec", MeetingID: meetingID, AudioPath: audioPath, Text: text}, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }
func (s *memoryStore) Close() error               { return nil }

type testServer struct {
	cfg      *config.Config
	provider *stubProvider
	store    *memoryStore
	server   *httptest.Server
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	ts := &testServer{
		cfg: &config.Config{
			STTProvider:                  config.ProviderDeepgram,
			DeepgramAPIKey:               "dg-test-key",
			MaxAudioBytes:                10 * 1024 * 1024,
			ChunkIntervalMs:              100,
			SampleRate:                   16000,
			OutputSampleRate:             16000,
			SpeakerIdentificationEnabled: true,
			RetryMaxAttempts:             1,
		},
		provider: &stubProvider{},
		store:    &memoryStore{},
	}
	if mutate != nil {
		mutate(ts.cfg)
	}

	factory := func(devices audio.MediaDevices, events recording.Events, logger zerolog.Logger) (*recording.Orchestrator, error) {
		return recording.New(recording.Options{
			Config:   ts.cfg,
			Devices:  devices,
			Provider: ts.provider,
			Store:    ts.store,
			Events:   events,
			Logger:   logger,
		})
	}
	ts.server = httptest.NewServer(HandleRecordingWS(factory, 16000, zerolog.Nop()))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips monitoring events until one named event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
		if msg.Event == EventNoise || msg.Event == EventSpeech {
			continue
		}
		t.Fatalf("Expected %q event, got %q (%+v)", event, msg.Event, msg.Error)
	}
}

func mediaMessage(track string) ClientMessage {
	frame := make([]float32, testFrameSamples)
	for i := range frame {
		frame[i] = 0.1
	}
	return ClientMessage{
		Event: EventMedia,
		Media: &MediaPayload{
			Track:   track,
			Payload: base64.StdEncoding.EncodeToString(audio.Float32ToPCM16(frame)),
		},
	}
}

func TestSession_RecordAndStop(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1", SampleRate: 16000}))
	started := readUntil(t, conn, EventStarted)
	assert.Equal(t, "m1", started.MeetingID)

	require.NoError(t, conn.WriteJSON(mediaMessage(TrackMicrophone)))
	require.NoError(t, conn.WriteJSON(mediaMessage(TrackMicrophone)))
	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStop}))

	msg := readUntil(t, conn, EventResult)
	require.NotNil(t, msg.Result)
	assert.Equal(t, "m1", msg.Result.MeetingID)
	assert.Equal(t, 44+2*testFrameSamples*2, msg.Result.AudioBytes)
	assert.Equal(t, "audio/test.wav", msg.Result.AudioPath)
	require.NotNil(t, msg.Result.Transcript)
	require.Len(t, msg.Result.Transcript.Segments, 1)
	assert.Equal(t, "Speaker 1", msg.Result.Transcript.Segments[0].Speaker)
	assert.Equal(t, 1, ts.provider.callCount())
}

func TestSession_PauseResume(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventPause}))
	msg := readUntil(t, conn, EventError)
	assert.Equal(t, CodeInvalidState, msg.Error.Code)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1"}))
	readUntil(t, conn, EventStarted)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventPause}))
	readUntil(t, conn, EventPaused)
	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventResume}))
	readUntil(t, conn, EventResumed)
}

func TestSession_PlaceholderKey(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.DeepgramAPIKey = "changeme" })
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1"}))
	msg := readUntil(t, conn, EventError)
	assert.Equal(t, CodeConfiguration, msg.Error.Code)
}

func TestSession_SystemAudioNotShared(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.SystemAudioEnabled = true })
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1", Tracks: []string{TrackMicrophone}}))
	warning := readUntil(t, conn, EventWarning)
	assert.Contains(t, warning.Message, "microphone only")
	readUntil(t, conn, EventStarted)
}

func TestSession_StopWithoutAudio(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1"}))
	readUntil(t, conn, EventStarted)
	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStop}))

	msg := readUntil(t, conn, EventError)
	assert.Equal(t, CodeTranscription, msg.Error.Code)
	assert.Zero(t, ts.provider.callCount())
}

func TestSession_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, CodeBadRequest, readUntil(t, conn, EventError).Error.Code)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: "dance"}))
	assert.Equal(t, CodeBadRequest, readUntil(t, conn, EventError).Error.Code)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventMedia}))
	assert.Equal(t, CodeBadRequest, readUntil(t, conn, EventError).Error.Code)
}

func TestSession_DisconnectStopsRecording(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStart, MeetingID: "m1"}))
	readUntil(t, conn, EventStarted)
	require.NoError(t, conn.WriteJSON(mediaMessage(TrackMicrophone)))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		ts.store.mu.Lock()
		defer ts.store.mu.Unlock()
		return ts.store.records == 1
	}, 3*time.Second, 10*time.Millisecond)
}

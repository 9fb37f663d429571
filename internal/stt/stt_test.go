package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/resilience"
)

func newTestMistral(t *testing.T, handler http.HandlerFunc) *MistralProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewMistralProvider("voxtral-mini-latest")
	p.endpoint = srv.URL
	p.httpClient = srv.Client()
	return p
}

func TestMistral_Transcribe(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "voxtral-mini-latest", r.FormValue("model"))
		assert.Equal(t, "true", r.FormValue("diarize"))

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFFdata", string(data))

		w.Write([]byte(`{"text":"ignored","segments":[
			{"speaker":"speaker_1","text":" Bom dia. ","start":0.5,"end":1.25},
			{"speaker":"speaker_2","text":"","start":1.3,"end":1.4},
			{"speaker":"speaker_2","text":"Meu nome é Ana.","start":2,"end":3}
		]}`))
	})

	segments, err := p.Transcribe(context.Background(), []byte("RIFFdata"), "secret")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, Segment{Speaker: "speaker_1", Text: "Bom dia.", Start: 500 * time.Millisecond, End: 1250 * time.Millisecond}, segments[0])
	assert.Equal(t, "Meu nome é Ana.", segments[1].Text)
}

func TestMistral_FallsBackToText(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"texto corrido"}`))
	})

	segments, err := p.Transcribe(context.Background(), []byte("x"), "k")
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Text: "texto corrido"}}, segments)
}

func TestMistral_Errors(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	_, err := p.Transcribe(context.Background(), []byte("x"), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.False(t, resilience.IsRetryable(err))

	_, err = p.Transcribe(context.Background(), nil, "k")
	assert.True(t, errors.Is(err, ErrEmptyAudio))
}

func TestMistral_ServerErrorsAreRetryable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "try later", status)
		})

		_, err := p.Transcribe(context.Background(), []byte("x"), "k")
		require.Error(t, err)
		assert.True(t, resilience.IsRetryable(err), "status %d", status)
	}
}

func TestMistral_NoSpeech(t *testing.T) {
	p := newTestMistral(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"  "}`))
	})

	_, err := p.Transcribe(context.Background(), []byte("x"), "k")
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestSegmentsFromUtterances(t *testing.T) {
	zero, one := 0, 1
	segments := segmentsFromUtterances([]utterance{
		{Start: 0, End: 1.5, Transcript: "Olá a todos.", Speaker: &zero},
		{Start: 1.5, End: 2, Transcript: "   "},
		{Start: 2, End: 4, Transcript: "Vamos começar.", Speaker: &one},
		{Start: 4, End: 5, Transcript: "Sem locutor."},
	})

	require.Len(t, segments, 3)
	assert.Equal(t, "Speaker 1", segments[0].Speaker)
	assert.Equal(t, 1500*time.Millisecond, segments[0].End)
	assert.Equal(t, "Speaker 2", segments[1].Speaker)
	assert.Empty(t, segments[2].Speaker)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.Config{STTProvider: config.ProviderDeepgram})
	require.NoError(t, err)
	assert.Equal(t, "deepgram", p.Name())

	p, err = NewProvider(&config.Config{STTProvider: config.ProviderMistral})
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.Name())

	_, err = NewProvider(&config.Config{STTProvider: "whisper"})
	assert.Error(t, err)
}

func TestDeepgramLive_SingleReconnectLoop(t *testing.T) {
	d := NewDeepgramLive(&config.Config{CircuitBreakerMaxFailures: 5, CircuitBreakerResetTimeout: 60}, 16000, zerolog.Nop())
	t.Cleanup(func() { _ = d.Close() })

	var loops atomic.Int32
	release := make(chan struct{})
	d.reconnect = func() {
		loops.Add(1)
		<-release
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.triggerReconnect()
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return loops.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, d.reconnecting.Load())
	assert.False(t, d.IsActive())
	d.triggerReconnect()
	assert.Equal(t, int32(1), loops.Load())

	close(release)
	require.Eventually(t, func() bool { return !d.reconnecting.Load() }, time.Second, 5*time.Millisecond)

	// A later failure may start a new loop
	d.triggerReconnect()
	require.Eventually(t, func() bool { return loops.Load() == 2 }, time.Second, 5*time.Millisecond)
}

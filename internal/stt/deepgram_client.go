package stt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/observability"
	"github.com/lexiqai/meeting-recorder/internal/resilience"
)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription messages to the listener
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramLive implements LiveListener using Deepgram's streaming API
type DeepgramLive struct {
	config         *config.Config
	sampleRate     int
	client         *listenClient.WSCallback
	captions       chan *Caption
	mu             sync.RWMutex
	isActive       bool
	paused         atomic.Bool
	reconnecting   atomic.Bool
	reconnect      func()
	ctx            context.Context
	cancel         context.CancelFunc
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramLive creates a live caption listener for PCM16 audio at sampleRate
func NewDeepgramLive(cfg *config.Config, sampleRate int, logger zerolog.Logger) *DeepgramLive {
	ctx, cancel := context.WithCancel(context.Background())

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram_live",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	d := &DeepgramLive{
		config:         cfg,
		sampleRate:     sampleRate,
		captions:       make(chan *Caption, 100),
		ctx:            ctx,
		cancel:         cancel,
		circuitBreaker: circuitBreaker,
		logger:         logger.With().Str("component", "deepgram_live").Logger(),
	}
	d.reconnect = d.attemptReconnect
	return d
}

// Start opens a new Deepgram streaming session
func (d *DeepgramLive) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return fmt.Errorf("deepgram listener is already active")
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.config.DeepgramLanguage,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.sampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().
				Interface("error", errorResponse).
				Msg("Deepgram stream error")

			d.circuitBreaker.RecordResult(false)
			observability.UpdateCircuitBreakerState(d.circuitBreaker.Name(), int(d.circuitBreaker.GetState()))
			observability.IncrementCircuitBreakerFailures(d.circuitBreaker.Name())

			d.triggerReconnect()
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		d.ctx,
		d.config.DeepgramAPIKey,
		&interfaces.ClientOptions{},
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		d.circuitBreaker.RecordResult(false)
		return fmt.Errorf("failed to connect to Deepgram")
	}

	d.client = client
	d.isActive = true

	d.circuitBreaker.RecordResult(true)
	observability.UpdateCircuitBreakerState(d.circuitBreaker.Name(), int(d.circuitBreaker.GetState()))

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.config.DeepgramLanguage).
		Msg("Deepgram live listener started")
	return nil
}

// handleMessage processes messages from Deepgram
func (d *DeepgramLive) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		startTime := msg.Start
		duration := msg.Duration
		if len(alt.Words) > 0 && duration == 0 {
			startTime = alt.Words[0].Start
			duration = alt.Words[len(alt.Words)-1].End - startTime
		}

		caption := &Caption{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
			StartTime:  startTime,
			Duration:   duration,
		}

		select {
		case d.captions <- caption:
		default:
			d.logger.Warn().Msg("Caption channel full, dropping caption")
		}

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram message ignored")
	}
}

// SendAudio sends an audio chunk to Deepgram. Chunks sent while paused are dropped.
func (d *DeepgramLive) SendAudio(audioData []byte) error {
	if d.paused.Load() {
		return nil
	}

	err := d.circuitBreaker.Call(func() error {
		d.mu.RLock()
		active := d.isActive
		client := d.client
		d.mu.RUnlock()

		if !active || client == nil {
			return fmt.Errorf("deepgram listener is not active")
		}

		if _, err := client.Write(audioData); err != nil {
			d.triggerReconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})

	observability.UpdateCircuitBreakerState(d.circuitBreaker.Name(), int(d.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(d.circuitBreaker.Name())
	}
	return err
}

// Pause stops forwarding audio
func (d *DeepgramLive) Pause() { d.paused.Store(true) }

// Resume continues forwarding audio
func (d *DeepgramLive) Resume() { d.paused.Store(false) }

// triggerReconnect marks the session inactive and starts a reconnect loop
// unless one is already running
func (d *DeepgramLive) triggerReconnect() {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	d.isActive = false
	d.mu.Unlock()

	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer d.reconnecting.Store(false)
		d.reconnect()
	}()
}

func (d *DeepgramLive) attemptReconnect() {
	if d.ctx.Err() != nil {
		return
	}

	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	if err := resilience.Reconnect(d.ctx, d.Start, reconnectConfig, d.logger); err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram listener")
	}
}

// Captions returns the channel receiving live captions
func (d *DeepgramLive) Captions() <-chan *Caption {
	return d.captions
}

// Stop ends the streaming session
func (d *DeepgramLive) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isActive {
		return nil
	}

	d.client.Finish()
	d.isActive = false
	d.logger.Info().Msg("Deepgram live listener stopped")
	return nil
}

// Close stops the session and closes the caption channel
func (d *DeepgramLive) Close() error {
	d.cancel()

	if err := d.Stop(); err != nil {
		return err
	}

	state, requests, failures, rate := d.circuitBreaker.GetStats()
	d.logger.Debug().
		Str("breaker_state", state.String()).
		Int64("requests", requests).
		Int64("failures", failures).
		Float64("failure_rate_pct", rate).
		Msg("Deepgram live listener closed")

	// Give in-flight callbacks a moment before closing
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(d.captions)
	}()
	return nil
}

// IsActive returns whether the listener is currently active
func (d *DeepgramLive) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}

// Package recording drives a meeting recording from device acquisition to a
// persisted transcript.
package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/minutes"
	"github.com/lexiqai/meeting-recorder/internal/observability"
	"github.com/lexiqai/meeting-recorder/internal/quota"
	"github.com/lexiqai/meeting-recorder/internal/resilience"
	"github.com/lexiqai/meeting-recorder/internal/speaker"
	"github.com/lexiqai/meeting-recorder/internal/storage"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// Chunks waiting for the live listener; 32 chunks is a few seconds at the default interval
	liveQueueSize    = 32
	liveDrainTimeout = 2 * time.Second
)

// State is the orchestrator lifecycle state
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Events receives session notifications. Nil callbacks are skipped.
// Callbacks run on orchestrator goroutines and must not block.
type Events struct {
	OnWarning  func(msg string)
	OnNoise    func(audio.NoiseSample)
	OnSpeech   func(audio.SpeechOnset)
	OnCaption  func(*stt.Caption)
	OnCapacity func(*CapacityError)
	// OnStopped is called once per session after the stop sequence,
	// including stops forced by the size cap.
	OnStopped func(*Result, error)
}

// Options configures an Orchestrator
type Options struct {
	Config   *config.Config
	Devices  audio.MediaDevices
	Provider stt.Provider
	Store    storage.DurableStore

	// Optional
	Quota    quota.Gate
	Registry *speaker.Registry
	// NewLiveListener creates a caption listener for a session at the given
	// PCM16 sample rate. Nil disables live captions.
	NewLiveListener func(sampleRate int) stt.LiveListener
	Clock           audio.Clock
	Retry           *resilience.RetryConfig
	Events          Events
	Logger          zerolog.Logger
}

// Result describes a finished session
type Result struct {
	SessionID       string                       `json:"sessionId" yaml:"sessionId"`
	MeetingID       string                       `json:"meetingId" yaml:"meetingId"`
	StartedAt       time.Time                    `json:"startedAt" yaml:"startedAt"`
	AudioBytes      int                          `json:"audioBytes" yaml:"audioBytes"`
	CapacityReached bool                         `json:"capacityReached,omitempty" yaml:"capacityReached,omitempty"`
	// Discarded is set when the quota gate refused the transcript
	Discarded  bool                         `json:"discarded,omitempty" yaml:"discarded,omitempty"`
	AudioPath  string                       `json:"audioPath,omitempty" yaml:"audioPath,omitempty"`
	Record     *storage.TranscriptionRecord `json:"record,omitempty" yaml:"record,omitempty"`
	Transcript *Transcript                  `json:"transcript,omitempty" yaml:"transcript,omitempty"`
}

// Orchestrator owns the recording state machine
type Orchestrator struct {
	cfg      *config.Config
	devices  audio.MediaDevices
	provider stt.Provider
	store    storage.DurableStore
	quota    quota.Gate
	registry *speaker.Registry
	newLive  func(sampleRate int) stt.LiveListener
	clock    audio.Clock
	retry    *resilience.RetryConfig
	events   Events
	builder  *audio.Builder
	tracer   *observability.Tracer
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	session *session
}

// session holds everything that lives between Start and Stop
type session struct {
	id        string
	meetingID string
	startedAt time.Time
	logger    zerolog.Logger
	metrics   *observability.Metrics

	graph        *audio.Graph
	recorder     *audio.Recorder
	live         stt.LiveListener
	liveFeed     chan []byte
	liveDone     chan struct{}
	liveDropped  int64 // recorder goroutine only
	cancel       context.CancelFunc
	recorderDone chan struct{}

	// Guarded by Orchestrator.mu
	chunks      [][]byte
	size        int64
	capacityHit bool
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("recording: config is required")
	}
	if opts.Devices == nil || opts.Provider == nil || opts.Store == nil {
		return nil, errors.New("recording: devices, provider and store are required")
	}

	o := &Orchestrator{
		cfg:      opts.Config,
		devices:  opts.Devices,
		provider: opts.Provider,
		store:    opts.Store,
		quota:    opts.Quota,
		registry: opts.Registry,
		newLive:  opts.NewLiveListener,
		clock:    opts.Clock,
		retry:    opts.Retry,
		events:   opts.Events,
		tracer:   observability.NewTracer(),
		logger:   opts.Logger.With().Str("component", "recording").Logger(),
	}
	if o.quota == nil {
		o.quota = quota.Unlimited
	}
	if o.registry == nil {
		o.registry = speaker.NewRegistry()
	}
	if o.clock == nil {
		o.clock = audio.RealClock{}
	}
	if o.retry == nil {
		o.retry = resilience.NewRetryConfig(o.cfg.RetryMaxAttempts, o.cfg.RetryInitialBackoff, o.cfg.RetryBackoffFactor)
	}
	o.builder = audio.NewBuilder(o.logger)
	return o, nil
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Registry returns the speaker registry used by this orchestrator
func (o *Orchestrator) Registry() *speaker.Registry { return o.registry }

// Start acquires the capture devices and begins buffering audio for meetingID
func (o *Orchestrator) Start(ctx context.Context, meetingID string) error {
	o.mu.Lock()
	s, warnings, err := o.start(ctx, meetingID)
	o.mu.Unlock()
	if err != nil {
		return err
	}

	for _, w := range warnings {
		o.warn(w)
	}

	s.logger.Info().
		Bool("system_audio", s.graph.HasSystemAudio()).
		Bool("live_captions", s.live != nil).
		Msg("Recording started")
	return nil
}

// start runs with o.mu held
func (o *Orchestrator) start(ctx context.Context, meetingID string) (*session, []string, error) {
	if o.state != StateIdle {
		return nil, nil, fmt.Errorf("%w: cannot start while %s", ErrInvalidState, o.state)
	}

	if config.IsPlaceholderKey(o.cfg.ProviderAPIKey()) {
		return nil, nil, &ConfigurationError{
			Provider: o.provider.Name(),
			Message:  "API key is missing or still a placeholder",
		}
	}

	id := uuid.New().String()
	logger := o.logger.With().
		Str("correlation_id", observability.NewCorrelationID()).
		Str("session_id", id).
		Str("meeting_id", meetingID).
		Logger()

	mic, err := o.devices.GetUserMedia(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Microphone unavailable")
		return nil, nil, &MediaAccessError{Device: "microphone", Err: err}
	}

	var warnings []string
	var system audio.MediaStream
	if o.cfg.SystemAudioEnabled {
		sys, err := o.devices.GetDisplayMedia(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("System audio unavailable, recording microphone only")
			warnings = append(warnings, "System audio unavailable, recording microphone only")
		} else {
			system = sys
		}
	}

	// The session outlives the request that started it
	sessionCtx, cancel := context.WithCancel(context.Background())
	graph, err := o.builder.Build(sessionCtx, mic, system)
	if err != nil {
		cancel()
		_ = mic.Stop()
		if system != nil {
			_ = system.Stop()
		}
		return nil, nil, fmt.Errorf("building audio graph: %w", err)
	}

	if o.cfg.SpeakerIdentificationEnabled {
		o.registry.Clear()
	}

	s := &session{
		id:        id,
		meetingID: meetingID,
		startedAt: o.clock.Now(),
		logger:    logger,
		metrics:   observability.NewRecordingMetrics(id),
		graph:     graph,
		recorder: audio.NewRecorder(graph.Output(), graph.SampleRate(), audio.RecorderConfig{
			OutputSampleRate: o.cfg.OutputSampleRate,
			ChunkInterval:    time.Duration(o.cfg.ChunkIntervalMs) * time.Millisecond,
		}),
		cancel:       cancel,
		recorderDone: make(chan struct{}),
	}

	monitor := audio.NewMonitor(graph.Analyser(), o.clock, audio.DefaultSpeechConfig())
	monitor.OnNoiseLevel(func(n audio.NoiseSample) {
		s.metrics.RecordNoiseSample(n.Noisy)
		if o.events.OnNoise != nil {
			o.events.OnNoise(n)
		}
	})
	monitor.OnSpeechOnset(func(onset audio.SpeechOnset) {
		s.metrics.RecordSpeechOnset()
		if o.events.OnSpeech != nil {
			o.events.OnSpeech(onset)
		}
	})

	if o.newLive != nil {
		live := o.newLive(s.recorder.OutputSampleRate())
		if err := live.Start(); err != nil {
			logger.Warn().Err(err).Msg("Live captions unavailable")
			warnings = append(warnings, "Live captions unavailable")
		} else {
			s.live = live
			s.liveFeed = make(chan []byte, liveQueueSize)
			s.liveDone = make(chan struct{})
			go o.feedLive(s)
			go o.forwardCaptions(sessionCtx, live)
		}
	}

	o.session = s
	o.state = StateRecording
	s.metrics.RecordStart()

	go func() {
		defer close(s.recorderDone)
		s.recorder.Run(sessionCtx, func(c audio.Chunk) { o.handleChunk(s, c) })
	}()
	go monitor.Run(sessionCtx)

	return s, warnings, nil
}

// handleChunk appends recorder output to the session buffer. A chunk that
// would take the buffer past MaxAudioBytes is not appended; it forces a
// stop instead, once per session.
func (o *Orchestrator) handleChunk(s *session, c audio.Chunk) {
	n := int64(len(c.Data))
	limit := int64(o.cfg.MaxAudioBytes)

	o.mu.Lock()
	if o.session != s || s.capacityHit {
		o.mu.Unlock()
		return
	}
	if s.size+n > limit {
		s.capacityHit = true
		capErr := &CapacityError{Limit: limit, Size: s.size}
		force := o.state == StateRecording || o.state == StatePaused
		o.mu.Unlock()

		s.logger.Warn().
			Int64("buffered_bytes", capErr.Size).
			Int64("limit", limit).
			Msg("Audio size limit reached, stopping recording")
		s.metrics.RecordCapacityStop()
		if o.events.OnCapacity != nil {
			o.events.OnCapacity(capErr)
		}
		if force {
			// Stop waits for this goroutine to drain
			go o.Stop(context.Background())
		}
		return
	}
	s.chunks = append(s.chunks, c.Data)
	s.size += n
	o.mu.Unlock()

	s.metrics.RecordAudioBytes("captured", n)
	if s.liveFeed == nil {
		return
	}
	// Captions lose audio before the recording does
	select {
	case s.liveFeed <- c.Data:
	default:
		s.liveDropped++
		observability.IncrementDroppedFrames("live_captions")
		if s.liveDropped == 1 {
			s.logger.Warn().Msg("Live captions falling behind, skipping audio for captions")
		}
	}
}

// feedLive sends queued audio to the live listener until the feed closes
func (o *Orchestrator) feedLive(s *session) {
	defer close(s.liveDone)
	for data := range s.liveFeed {
		if err := s.live.SendAudio(data); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to send audio to live captions")
		}
	}
}

func (o *Orchestrator) forwardCaptions(ctx context.Context, live stt.LiveListener) {
	captions := live.Captions()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-captions:
			if !ok {
				return
			}
			if c != nil && o.events.OnCaption != nil {
				o.events.OnCaption(c)
			}
		}
	}
}

// Pause suspends the recorder and live captions; the graph keeps running
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRecording {
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, o.state)
	}
	o.session.recorder.Pause()
	if o.session.live != nil {
		o.session.live.Pause()
	}
	o.state = StatePaused
	o.session.logger.Info().Msg("Recording paused")
	return nil
}

// Resume continues a paused recording
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StatePaused {
		return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, o.state)
	}
	o.session.recorder.Resume()
	if o.session.live != nil {
		o.session.live.Resume()
	}
	o.state = StateRecording
	o.session.logger.Info().Msg("Recording resumed")
	return nil
}

// Stop ends the session, transcribes and persists it. Calling Stop while
// idle, or while another stop is in progress, returns (nil, nil). The
// orchestrator is always idle when Stop returns a result.
func (o *Orchestrator) Stop(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.state == StateIdle || o.state == StateStopping {
		o.mu.Unlock()
		return nil, nil
	}
	s := o.session
	o.state = StateStopping
	o.mu.Unlock()

	res, err := o.finish(ctx, s)

	o.mu.Lock()
	o.session = nil
	o.state = StateIdle
	o.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("Recording stop failed")
	} else {
		s.logger.Info().
			Int("audio_bytes", res.AudioBytes).
			Bool("discarded", res.Discarded).
			Str("audio_path", res.AudioPath).
			Msg("Recording stopped")
	}
	if o.events.OnStopped != nil {
		o.events.OnStopped(res, err)
	}
	return res, err
}

func (o *Orchestrator) finish(ctx context.Context, s *session) (*Result, error) {
	if err := s.graph.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing audio graph")
	}
	// The recorder drains the graph output and flushes its last chunk
	<-s.recorderDone
	s.cancel()
	if s.live != nil {
		close(s.liveFeed)
		select {
		case <-s.liveDone:
		case <-time.After(liveDrainTimeout):
			s.logger.Warn().Msg("Live captions did not drain before close")
		}
		if s.liveDropped > 0 {
			s.logger.Warn().Int64("dropped_chunks", s.liveDropped).Msg("Live captions skipped audio")
		}
		if err := s.live.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing live captions")
		}
	}
	s.metrics.RecordCaptureEnd()

	o.mu.Lock()
	pcm := bytes.Join(s.chunks, nil)
	capacityHit := s.capacityHit
	s.chunks = nil
	s.size = 0
	o.mu.Unlock()

	res := &Result{
		SessionID:       s.id,
		MeetingID:       s.meetingID,
		StartedAt:       s.startedAt,
		CapacityReached: capacityHit,
	}
	if len(pcm) == 0 {
		return res, &TranscriptionError{Provider: o.provider.Name(), Err: stt.ErrEmptyAudio}
	}

	blob := audio.EncodeWAV(pcm, s.recorder.OutputSampleRate())
	res.AudioBytes = len(blob)
	s.metrics.RecordAudioBytes("encoded", int64(len(blob)))

	return o.process(ctx, s, res, blob)
}

func (o *Orchestrator) process(ctx context.Context, s *session, res *Result, blob []byte) (_ *Result, err error) {
	ctx, span := o.tracer.StartStopSpan(ctx, s.id, s.meetingID, int64(len(blob)))
	defer func() { observability.EndSpan(span, err) }()

	if !o.quota.Allow(ctx) {
		s.logger.Warn().Msg("Transcription quota exhausted, discarding recording")
		res.Discarded = true
		return res, nil
	}

	segments, err := o.transcribe(ctx, s, blob)
	if err != nil {
		// Nothing is persisted, so the allowance goes back
		if r, ok := o.quota.(quota.Releaser); ok {
			r.Release(ctx)
		}
		return res, err
	}

	m := &minutes.MeetingMinutes{Date: s.startedAt.Format("2006-01-02")}
	pipeline := NewPipeline(o.registry, o.cfg.SpeakerIdentificationEnabled, s.logger)
	res.Transcript = pipeline.Process(s.startedAt, segments, m)

	res.AudioPath, res.Record, err = o.persist(ctx, s, blob, res.Transcript.Text())
	return res, err
}

func (o *Orchestrator) transcribe(ctx context.Context, s *session, blob []byte) ([]stt.Segment, error) {
	name := o.provider.Name()
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanTranscribe, attribute.String(observability.AttrProvider, name))

	s.metrics.RecordTranscriptionStart()
	segments, err := resilience.DoIf(ctx, o.retryFor(s, "transcribe"), resilience.IsRetryableNetworkError,
		func(ctx context.Context) ([]stt.Segment, error) {
			return o.provider.Transcribe(ctx, blob, o.cfg.ProviderAPIKey())
		})
	if err == nil && len(segments) == 0 {
		err = stt.ErrNoSpeech
	}
	s.metrics.RecordTranscriptionEnd(name, err == nil)
	span.SetAttributes(attribute.Int(observability.AttrSegments, len(segments)))
	observability.EndSpan(span, err)

	if err != nil {
		s.metrics.RecordError("transcription_failed", name)
		return nil, &TranscriptionError{Provider: name, Err: err}
	}
	s.logger.Debug().Int("segments", len(segments)).Str("provider", name).Msg("Transcription complete")
	return segments, nil
}

// persist saves the audio and then the record, each through the retry executor
func (o *Orchestrator) persist(ctx context.Context, s *session, blob []byte, text string) (string, *storage.TranscriptionRecord, error) {
	audioName := fmt.Sprintf("%s-%s.wav", nameOr(s.meetingID, "meeting"), s.startedAt.Format("20060102-150405"))

	spanCtx, span := o.tracer.StartSpan(ctx, observability.SpanPersistAudio)
	path, err := resilience.Do(spanCtx, o.retryFor(s, "save_audio"), func(ctx context.Context) (string, error) {
		p, err := o.store.SaveAudio(ctx, blob, audioName)
		s.metrics.RecordPersistence("save_audio", err == nil)
		return p, err
	})
	span.SetAttributes(attribute.String(observability.AttrAudioPath, path))
	observability.EndSpan(span, err)
	if err != nil {
		return "", nil, &PersistenceError{Err: err}
	}

	spanCtx, span = o.tracer.StartSpan(ctx, observability.SpanPersistRecord)
	rec, err := resilience.Do(spanCtx, o.retryFor(s, "save_record"), func(ctx context.Context) (*storage.TranscriptionRecord, error) {
		r, err := o.store.SaveTranscriptionRecord(ctx, s.meetingID, path, text)
		s.metrics.RecordPersistence("save_record", err == nil)
		return r, err
	})
	observability.EndSpan(span, err)
	if err != nil {
		return path, nil, &PersistenceError{AudioSaved: true, AudioPath: path, Err: err}
	}
	return path, rec, nil
}

func (o *Orchestrator) retryFor(s *session, operation string) *resilience.RetryConfig {
	cfg := *o.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		observability.IncrementRetries(operation)
		s.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying after transient failure")
	}
	return &cfg
}

func (o *Orchestrator) warn(msg string) {
	if o.events.OnWarning != nil {
		o.events.OnWarning(msg)
	}
}

func nameOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

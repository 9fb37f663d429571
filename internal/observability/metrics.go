package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	activeRecordings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_recorder_active_recordings",
		Help: "Number of recordings currently capturing audio",
	})

	totalRecordings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_recorder_recordings_total",
		Help: "Total number of recordings started",
	})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_recorder_recording_duration_seconds",
		Help:    "Duration of recordings in seconds",
		Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200},
	})

	capacityStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_recorder_capacity_stops_total",
		Help: "Recordings force-stopped by the audio size cap",
	})

	droppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_dropped_frames_total",
		Help: "Audio frames or chunks dropped because a consumer fell behind",
	}, []string{"stage"}) // stage: "live_captions" or "remote_input"

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_audio_bytes_total",
		Help: "Total audio bytes buffered or persisted",
	}, []string{"stage"}) // stage: "buffered" or "persisted"

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_transcription_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"provider", "status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_recorder_transcription_latency_seconds",
		Help:    "Transcription provider latency in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// Persistence metrics
	persistenceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_persistence_attempts_total",
		Help: "Durable store attempts by operation and outcome",
	}, []string{"operation", "status"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_retries_total",
		Help: "Retries scheduled after a failed attempt",
	}, []string{"operation"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meeting_recorder_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_recorder_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Analysis metrics
	speechOnsets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_recorder_speech_onsets_total",
		Help: "Speech onsets detected by the frequency analysis stage",
	})

	noisySamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_recorder_noisy_samples_total",
		Help: "Noise-level samples flagged as noisy",
	})
)

// Metrics tracks metrics for a single recording session
type Metrics struct {
	sessionID          string
	startTime          time.Time
	transcriptionStart time.Time
	mu                 sync.Mutex
}

// NewRecordingMetrics creates a new metrics tracker for a recording session
func NewRecordingMetrics(sessionID string) *Metrics {
	return &Metrics{sessionID: sessionID}
}

// RecordStart records the start of a recording
func (m *Metrics) RecordStart() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
	activeRecordings.Inc()
	totalRecordings.Inc()
}

// RecordCaptureEnd records the end of audio capture
func (m *Metrics) RecordCaptureEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startTime.IsZero() {
		return
	}
	activeRecordings.Dec()
	recordingDuration.Observe(time.Since(m.startTime).Seconds())
	m.startTime = time.Time{}
}

// RecordCapacityStop records a stop forced by the audio size cap
func (m *Metrics) RecordCapacityStop() {
	capacityStops.Inc()
}

// RecordAudioBytes records audio bytes for the given stage
func (m *Metrics) RecordAudioBytes(stage string, bytes int64) {
	audioBytes.WithLabelValues(stage).Add(float64(bytes))
}

// RecordTranscriptionStart records the start of a provider call
func (m *Metrics) RecordTranscriptionStart() {
	m.mu.Lock()
	m.transcriptionStart = time.Now()
	m.mu.Unlock()
}

// RecordTranscriptionEnd records the end of a provider call
func (m *Metrics) RecordTranscriptionEnd(provider string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.transcriptionStart.IsZero() {
		transcriptionLatency.Observe(time.Since(m.transcriptionStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(provider, status).Inc()
}

// RecordPersistence records one durable store attempt
func (m *Metrics) RecordPersistence(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	persistenceAttempts.WithLabelValues(operation, status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordSpeechOnset records a detected speech onset
func (m *Metrics) RecordSpeechOnset() {
	speechOnsets.Inc()
}

// RecordNoiseSample records a noise-level sample
func (m *Metrics) RecordNoiseSample(noisy bool) {
	if noisy {
		noisySamples.Inc()
	}
}

// IncrementDroppedFrames counts audio dropped at a stage
func IncrementDroppedFrames(stage string) {
	droppedFrames.WithLabelValues(stage).Inc()
}

// IncrementRetries increments the retry counter for an operation
func IncrementRetries(operation string) {
	retriesTotal.WithLabelValues(operation).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

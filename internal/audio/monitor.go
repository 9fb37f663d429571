package audio

import (
	"context"
	"sync"
	"time"
)

// SpeechConfig holds configuration for speech onset detection
type SpeechConfig struct {
	AmplitudeThreshold float64       // Mean absolute amplitude that counts as speech
	MinGap             time.Duration // Minimum pause between phrases
}

// DefaultSpeechConfig returns the speech onset configuration
func DefaultSpeechConfig() *SpeechConfig {
	return &SpeechConfig{
		AmplitudeThreshold: 0.01,
		MinGap:             500 * time.Millisecond,
	}
}

// SpeechDetector flags the start of a phrase. A new onset is reported only
// when the signal is loud enough and MinGap has passed since the previous one.
type SpeechDetector struct {
	config    *SpeechConfig
	lastOnset time.Time
	hasOnset  bool
}

// NewSpeechDetector creates a new speech detector
func NewSpeechDetector(config *SpeechConfig) *SpeechDetector {
	if config == nil {
		config = DefaultSpeechConfig()
	}
	return &SpeechDetector{config: config}
}

// ProcessFrame inspects one time domain buffer and returns the amplitude and
// whether it starts a new phrase.
func (d *SpeechDetector) ProcessFrame(samples []float32, now time.Time) (float64, bool) {
	amplitude := MeanAbsolute(samples)
	if amplitude <= d.config.AmplitudeThreshold {
		return amplitude, false
	}
	if d.hasOnset && now.Sub(d.lastOnset) < d.config.MinGap {
		return amplitude, false
	}
	d.lastOnset = now
	d.hasOnset = true
	return amplitude, true
}

// NoiseSample is published at most once per NoiseInterval
type NoiseSample struct {
	At      time.Time
	LevelDB float64
	// RMS of the most recent analyser window, linear scale
	RMS   float64
	Noisy bool
}

// SpeechOnset is published when a new phrase starts
type SpeechOnset struct {
	At        time.Time
	Amplitude float64
}

const (
	NoiseInterval = time.Second
	// Roughly one animation frame
	DefaultTickInterval = 16 * time.Millisecond
)

// Monitor polls an analyser and publishes noise level samples and speech
// onsets to subscribers.
type Monitor struct {
	analyser *Analyser
	clock    Clock
	speech   *SpeechDetector
	interval time.Duration

	mu        sync.Mutex
	lastNoise time.Time
	hasNoise  bool
	onNoise   []func(NoiseSample)
	onSpeech  []func(SpeechOnset)
}

// NewMonitor creates a monitor over the analyser. A nil clock uses the wall clock.
func NewMonitor(analyser *Analyser, clock Clock, speech *SpeechConfig) *Monitor {
	if clock == nil {
		clock = RealClock{}
	}
	return &Monitor{
		analyser: analyser,
		clock:    clock,
		speech:   NewSpeechDetector(speech),
		interval: DefaultTickInterval,
	}
}

// OnNoiseLevel subscribes to noise samples
func (m *Monitor) OnNoiseLevel(fn func(NoiseSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNoise = append(m.onNoise, fn)
}

// OnSpeechOnset subscribes to speech onsets
func (m *Monitor) OnSpeechOnset(fn func(SpeechOnset)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeech = append(m.onSpeech, fn)
}

// Tick runs one polling step at the given instant
func (m *Monitor) Tick(now time.Time) {
	m.mu.Lock()
	window := m.analyser.TimeDomainData()

	var noise *NoiseSample
	if !m.hasNoise || now.Sub(m.lastNoise) >= NoiseInterval {
		level := m.analyser.NoiseLevel()
		noise = &NoiseSample{At: now, LevelDB: level, RMS: CalculateRMS(window), Noisy: level > NoisyLevelDB}
		m.lastNoise = now
		m.hasNoise = true
	}

	var onset *SpeechOnset
	if amplitude, ok := m.speech.ProcessFrame(window, now); ok {
		onset = &SpeechOnset{At: now, Amplitude: amplitude}
	}

	noiseSubs := append([]func(NoiseSample){}, m.onNoise...)
	speechSubs := append([]func(SpeechOnset){}, m.onSpeech...)
	m.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the monitor
	if noise != nil {
		for _, fn := range noiseSubs {
			fn(*noise)
		}
	}
	if onset != nil {
		for _, fn := range speechSubs {
			fn(*onset)
		}
	}
}

// Run ticks until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			m.Tick(now)
		}
	}
}

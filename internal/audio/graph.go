package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mix weights used when system audio is captured alongside the microphone
const (
	MicrophoneGain = 0.7
	SystemGain     = 0.3
)

// Upper bound on system audio waiting to be mixed, in seconds
const maxPendingSeconds = 2

// How long Close lets the pump drain a stream that has ended
const drainTimeout = 250 * time.Millisecond

// MediaStream is a live source of mono float32 frames
type MediaStream interface {
	ID() string
	SampleRate() int
	// Frames is closed when the stream ends
	Frames() <-chan []float32
	Stop() error
}

// MediaDevices acquires capture streams
type MediaDevices interface {
	GetUserMedia(ctx context.Context) (MediaStream, error)
	GetDisplayMedia(ctx context.Context) (MediaStream, error)
}

// GainNode scales samples by a constant
type GainNode struct {
	Gain float32
}

// Process scales samples in place and returns them
func (g GainNode) Process(samples []float32) []float32 {
	for i := range samples {
		samples[i] *= g.Gain
	}
	return samples
}

// Builder constructs processing graphs
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder creates a graph builder
func NewBuilder(logger zerolog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build wires mic, and system when non-nil, into a single mixed output.
// The graph owns both streams from this point on.
func (b *Builder) Build(ctx context.Context, mic, system MediaStream) (*Graph, error) {
	if mic == nil {
		return nil, fmt.Errorf("microphone stream is required")
	}
	rate := mic.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("invalid microphone sample rate %d", rate)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	g := &Graph{
		mic:        mic,
		system:     system,
		sampleRate: rate,
		compressor: NewNoiseReduction(rate),
		analyser:   NewAnalyser(rate),
		micGain:    GainNode{Gain: MicrophoneGain},
		systemGain: GainNode{Gain: SystemGain},
		out:        make(chan []float32, 64),
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     b.logger.With().Str("component", "audio_graph").Logger(),
	}

	if system != nil {
		g.maxPending = rate * maxPendingSeconds
		go g.collectSystem(pumpCtx)
	}
	go g.pump(pumpCtx)

	g.logger.Debug().
		Str("mic_stream", mic.ID()).
		Bool("system_audio", system != nil).
		Int("sample_rate", rate).
		Msg("Audio graph built")
	return g, nil
}

// Graph mixes and conditions capture streams
type Graph struct {
	mic        MediaStream
	system     MediaStream
	sampleRate int

	compressor *NoiseReduction
	analyser   *Analyser
	micGain    GainNode
	systemGain GainNode

	pendingMu  sync.Mutex
	pending    []float32
	maxPending int

	out       chan []float32
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	logger zerolog.Logger
}

// Output delivers mixed frames; it is closed when the microphone ends or
// the graph is closed.
func (g *Graph) Output() <-chan []float32 { return g.out }

// Analyser returns the frequency analysis stage
func (g *Graph) Analyser() *Analyser { return g.analyser }

// SampleRate returns the output sample rate
func (g *Graph) SampleRate() int { return g.sampleRate }

// HasSystemAudio reports whether system audio is mixed in
func (g *Graph) HasSystemAudio() bool { return g.system != nil }

func (g *Graph) collectSystem(ctx context.Context) {
	frames := g.system.Frames()
	resampler := NewResampler(g.system.SampleRate(), g.sampleRate)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			frame = resampler.Process(frame)
			g.pendingMu.Lock()
			g.pending = append(g.pending, frame...)
			if over := len(g.pending) - g.maxPending; over > 0 {
				g.pending = g.pending[over:]
			}
			g.pendingMu.Unlock()
		}
	}
}

// takeSystem removes up to n pending system samples, zero padded
func (g *Graph) takeSystem(n int) []float32 {
	out := make([]float32, n)
	g.pendingMu.Lock()
	k := copy(out, g.pending)
	g.pending = g.pending[k:]
	g.pendingMu.Unlock()
	return out
}

func (g *Graph) pump(ctx context.Context) {
	defer close(g.done)
	defer close(g.out)

	frames := g.mic.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			mixed := g.process(frame)
			select {
			case g.out <- mixed:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (g *Graph) process(frame []float32) []float32 {
	buf := make([]float32, len(frame))
	copy(buf, frame)

	g.compressor.Process(buf)
	g.analyser.Write(buf)

	if g.system == nil {
		return buf
	}
	g.micGain.Process(buf)
	sys := g.systemGain.Process(g.takeSystem(len(buf)))
	for i := range buf {
		buf[i] += sys[i]
	}
	return buf
}

// Close stops every stream and waits for the pump. Frames the streams
// delivered before ending are still mixed, up to drainTimeout; after that
// the pump is cancelled. Safe to call more than once.
func (g *Graph) Close() error {
	g.closeOnce.Do(func() {
		var errs []error
		if err := g.mic.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop microphone: %w", err))
		}
		if g.system != nil {
			if err := g.system.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop system audio: %w", err))
			}
		}

		timer := time.NewTimer(drainTimeout)
		select {
		case <-g.done:
			timer.Stop()
		case <-timer.C:
		}
		g.cancel()
		<-g.done

		g.closeErr = errors.Join(errs...)
		g.logger.Debug().Err(g.closeErr).Msg("Audio graph closed")
	})
	return g.closeErr
}

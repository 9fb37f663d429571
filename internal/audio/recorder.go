package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Chunk is one slice of encoded recorder output
type Chunk struct {
	Index int
	Data  []byte // PCM16LE mono at the recorder output rate
}

// RecorderConfig holds the recorder output format
type RecorderConfig struct {
	OutputSampleRate int
	ChunkInterval    time.Duration
}

// Recorder turns a stream of float frames into fixed-duration PCM chunks
type Recorder struct {
	source     <-chan []float32
	inputRate  int
	outputRate int
	chunkBytes int
	resampler  *Resampler

	paused atomic.Bool

	mu      sync.Mutex
	pending []byte
	index   int
}

// NewRecorder creates a recorder reading from source
func NewRecorder(source <-chan []float32, inputRate int, cfg RecorderConfig) *Recorder {
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = inputRate
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	samples := int(int64(cfg.OutputSampleRate) * cfg.ChunkInterval.Milliseconds() / 1000)
	if samples < 1 {
		samples = 1
	}
	return &Recorder{
		source:     source,
		inputRate:  inputRate,
		outputRate: cfg.OutputSampleRate,
		chunkBytes: samples * 2,
		resampler:  NewResampler(inputRate, cfg.OutputSampleRate),
	}
}

// OutputSampleRate returns the sample rate of emitted chunks
func (r *Recorder) OutputSampleRate() int { return r.outputRate }

// Pause drops incoming frames until Resume
func (r *Recorder) Pause() { r.paused.Store(true) }

// Resume continues encoding
func (r *Recorder) Resume() { r.paused.Store(false) }

// Paused reports whether the recorder is paused
func (r *Recorder) Paused() bool { return r.paused.Load() }

// Write encodes one frame and returns any chunks it completed.
// Frames written while paused are dropped.
func (r *Recorder) Write(frame []float32) []Chunk {
	if r.paused.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, Float32ToPCM16(r.resampler.Process(frame))...)
	var chunks []Chunk
	for len(r.pending) >= r.chunkBytes {
		chunks = append(chunks, r.take(r.chunkBytes))
	}
	return chunks
}

// Flush returns the remaining samples as a short chunk, or false if none
func (r *Recorder) Flush() (Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return Chunk{}, false
	}
	return r.take(len(r.pending)), true
}

func (r *Recorder) take(n int) Chunk {
	data := make([]byte, n)
	copy(data, r.pending[:n])
	r.pending = append(r.pending[:0], r.pending[n:]...)
	c := Chunk{Index: r.index, Data: data}
	r.index++
	return c
}

// Run encodes frames from the source until it closes or ctx is done,
// calling onChunk in order. Pending samples are flushed on exit.
func (r *Recorder) Run(ctx context.Context, onChunk func(Chunk)) {
	defer func() {
		if c, ok := r.Flush(); ok {
			onChunk(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-r.source:
			if !ok {
				return
			}
			for _, c := range r.Write(frame) {
				onChunk(c)
			}
		}
	}
}

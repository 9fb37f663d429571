package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lexiqai/meeting-recorder/internal/audio"
)

// Track names carried by media events
const (
	TrackMicrophone = "mic"
	TrackSystem     = "system"
)

var (
	// ErrTrackNotShared is returned when the client did not offer a track
	ErrTrackNotShared = errors.New("track not shared by client")
	// ErrStreamFull is returned by Push when the recorder is not keeping up
	ErrStreamFull = errors.New("stream buffer full, frame dropped")
)

// Devices implements audio.MediaDevices over media events received on a
// websocket. The client announces its tracks in the start event.
type Devices struct {
	mu         sync.Mutex
	sampleRate int
	tracks     map[string]bool
	streams    map[string]*remoteStream
	bufferSize int
	dropped    atomic.Int64
}

// NewDevices creates an empty device set
func NewDevices() *Devices {
	return &Devices{
		tracks:     make(map[string]bool),
		streams:    make(map[string]*remoteStream),
		bufferSize: 64,
	}
}

// Announce records the client's sample rate and the tracks it will send
func (d *Devices) Announce(sampleRate int, tracks []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sampleRate = sampleRate
	d.tracks = make(map[string]bool, len(tracks))
	for _, t := range tracks {
		d.tracks[t] = true
	}
	// A client that names no tracks is sending the microphone only
	if len(tracks) == 0 {
		d.tracks[TrackMicrophone] = true
	}
}

// GetUserMedia returns a stream fed by "mic" media events
func (d *Devices) GetUserMedia(ctx context.Context) (audio.MediaStream, error) {
	return d.open(TrackMicrophone)
}

// GetDisplayMedia returns a stream fed by "system" media events
func (d *Devices) GetDisplayMedia(ctx context.Context) (audio.MediaStream, error) {
	return d.open(TrackSystem)
}

func (d *Devices) open(track string) (audio.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.tracks[track] {
		return nil, fmt.Errorf("%s: %w", track, ErrTrackNotShared)
	}
	if d.sampleRate <= 0 {
		return nil, fmt.Errorf("%s: sample rate not announced", track)
	}
	if old := d.streams[track]; old != nil {
		_ = old.Stop()
	}
	s := &remoteStream{
		id:     track,
		rate:   d.sampleRate,
		frames: make(chan []float32, d.bufferSize),
	}
	d.streams[track] = s
	return s, nil
}

// Push decodes PCM16LE audio for track and delivers it to the open stream.
// It reports false when no stream is open for the track. A full buffer
// drops the frame and returns ErrStreamFull.
func (d *Devices) Push(track string, pcm []byte) (bool, error) {
	samples, err := audio.PCM16ToFloat32(pcm)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	s := d.streams[track]
	d.mu.Unlock()
	if s == nil {
		return false, nil
	}
	delivered, full := s.push(samples)
	if full {
		d.dropped.Add(1)
		return false, ErrStreamFull
	}
	return delivered, nil
}

// Dropped returns the number of frames refused because a stream was full
func (d *Devices) Dropped() int64 {
	return d.dropped.Load()
}

// remoteStream is a MediaStream whose frames arrive over the network
type remoteStream struct {
	id     string
	rate   int
	frames chan []float32

	mu     sync.Mutex
	closed bool
}

func (s *remoteStream) ID() string               { return s.id }
func (s *remoteStream) SampleRate() int          { return s.rate }
func (s *remoteStream) Frames() <-chan []float32 { return s.frames }

func (s *remoteStream) push(frame []float32) (delivered, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.frames <- frame:
		return true, false
	default:
		return false, true
	}
}

// Stop ends the stream; frames already queued are still delivered
func (s *remoteStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

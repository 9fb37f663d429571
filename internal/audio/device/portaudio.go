// Package device captures microphone and loopback audio through PortAudio.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/meeting-recorder/internal/audio"
)

// ErrNoDevice is returned when no suitable capture device exists
var ErrNoDevice = errors.New("no suitable capture device")

// Source classifies a capture device
type Source string

const (
	SourceUnknown Source = ""
	SourceUser    Source = "user"
	SourceSystem  Source = "system"
)

var (
	systemKeywords    = []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower", "stereo mix"}
	micKeywords       = []string{"microphone", "input", "mic", "built-in"}
	preferredKeywords = []string{"macbook", "built-in"}
)

// Classify decides whether a device name looks like a microphone or a
// loopback of system output.
func Classify(name string) Source {
	lower := strings.ToLower(name)
	for _, kw := range systemKeywords {
		if strings.Contains(lower, kw) {
			return SourceSystem
		}
	}
	for _, kw := range micKeywords {
		if strings.Contains(lower, kw) {
			return SourceUser
		}
	}
	return SourceUnknown
}

// prefer reports whether name should replace current as the microphone
func prefer(name, current string) bool {
	name, current = strings.ToLower(name), strings.ToLower(current)
	for _, p := range preferredKeywords {
		if strings.Contains(name, p) && !strings.Contains(current, p) {
			return true
		}
	}
	return false
}

// Devices implements audio.MediaDevices on top of PortAudio
type Devices struct {
	sampleRate   int
	framesPerBuf int
	logger       zerolog.Logger
}

// NewDevices initializes PortAudio. Close must be called to release it.
func NewDevices(sampleRate int, logger zerolog.Logger) (*Devices, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &Devices{
		sampleRate:   sampleRate,
		framesPerBuf: 1024,
		logger:       logger.With().Str("component", "portaudio").Logger(),
	}, nil
}

// Close terminates PortAudio
func (d *Devices) Close() error {
	return portaudio.Terminate()
}

// GetUserMedia opens the preferred microphone
func (d *Devices) GetUserMedia(ctx context.Context) (audio.MediaStream, error) {
	dev, err := d.pick(SourceUser)
	if err != nil {
		return nil, err
	}
	return d.open(ctx, dev, SourceUser)
}

// GetDisplayMedia opens a loopback device carrying system output
func (d *Devices) GetDisplayMedia(ctx context.Context) (audio.MediaStream, error) {
	dev, err := d.pick(SourceSystem)
	if err != nil {
		return nil, err
	}
	return d.open(ctx, dev, SourceSystem)
}

func (d *Devices) pick(source Source) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || Classify(dev.Name) != source {
			continue
		}
		if best == nil || prefer(dev.Name, best.Name) {
			best = dev
		}
	}

	// Fall back to the host default input for the microphone
	if best == nil && source == SourceUser {
		if best, err = portaudio.DefaultInputDevice(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, source)
	}
	return best, nil
}

func (d *Devices) open(ctx context.Context, dev *portaudio.DeviceInfo, source Source) (audio.MediaStream, error) {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(d.sampleRate),
		FramesPerBuffer: d.framesPerBuf,
	}

	buf := make([]float32, d.framesPerBuf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start %s: %w", dev.Name, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &captureStream{
		id:     dev.Name,
		rate:   d.sampleRate,
		stream: stream,
		frames: make(chan []float32, 32),
		cancel: cancel,
	}
	go s.read(streamCtx, buf, d.logger)

	d.logger.Info().Str("device", dev.Name).Str("source", string(source)).Msg("Started audio capture")
	return s, nil
}

type captureStream struct {
	id     string
	rate   int
	stream *portaudio.Stream
	frames chan []float32
	cancel context.CancelFunc

	stopOnce sync.Once
	stopErr  error
}

func (s *captureStream) ID() string               { return s.id }
func (s *captureStream) SampleRate() int          { return s.rate }
func (s *captureStream) Frames() <-chan []float32 { return s.frames }

func (s *captureStream) read(ctx context.Context, buf []float32, logger zerolog.Logger) {
	defer close(s.frames)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if ctx.Err() == nil {
				logger.Debug().Err(err).Str("device", s.id).Msg("Audio read error")
			}
			return
		}

		select {
		case s.frames <- append([]float32(nil), buf...):
		default:
			logger.Debug().Str("device", s.id).Msg("Audio buffer full, dropping frame")
		}
	}
}

// Stop ends the capture. Safe to call more than once.
func (s *captureStream) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.stopErr = errors.Join(s.stream.Stop(), s.stream.Close())
	})
	return s.stopErr
}

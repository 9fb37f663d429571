package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// Float32ToPCM16 converts [-1, 1] float samples to little-endian 16-bit PCM.
// Out of range samples are clipped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * math.MaxInt16)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to float samples
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples)")
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / math.MaxInt16
	}
	return out, nil
}

// Resampler converts a stream of frames between sample rates with linear
// interpolation. The read position and the input samples still needed for
// interpolation carry over between calls, so output length tracks input
// length exactly however the stream is framed.
type Resampler struct {
	inputRate  int64
	outputRate int64

	buf      []float32 // input samples from global index base onwards
	base     int64
	produced int64 // output samples emitted so far
}

// NewResampler creates a resampler from inputRate to outputRate
func NewResampler(inputRate, outputRate int) *Resampler {
	return &Resampler{inputRate: int64(inputRate), outputRate: int64(outputRate)}
}

// Process consumes samples and returns every output sample they complete
func (r *Resampler) Process(samples []float32) []float32 {
	if r.inputRate == r.outputRate || r.inputRate <= 0 || r.outputRate <= 0 {
		return samples
	}
	r.buf = append(r.buf, samples...)
	end := r.base + int64(len(r.buf))

	out := make([]float32, 0, len(samples)*int(r.outputRate)/int(r.inputRate)+1)
	for {
		num := r.produced * r.inputRate
		idx0 := num / r.outputRate
		rem := num % r.outputRate
		if idx0 >= end || (rem != 0 && idx0+1 >= end) {
			break
		}
		v := r.buf[idx0-r.base]
		if rem != 0 {
			frac := float32(rem) / float32(r.outputRate)
			v = v*(1-frac) + r.buf[idx0+1-r.base]*frac
		}
		out = append(out, v)
		r.produced++
	}

	// Keep only what the next output sample still reads
	next := r.produced * r.inputRate / r.outputRate
	if drop := next - r.base; drop > 0 {
		if drop > int64(len(r.buf)) {
			drop = int64(len(r.buf))
		}
		r.buf = append(r.buf[:0], r.buf[drop:]...)
		r.base += drop
	}
	return out
}

// EncodeWAV wraps mono 16-bit PCM in a RIFF/WAVE container
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV extracts mono 16-bit PCM and its sample rate from a WAV blob.
// Multi-channel input is downmixed by taking the first channel.
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var channels, bits int
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short")
			}
			if format := binary.LittleEndian.Uint16(data[body : body+2]); format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			if bits != bitsPerSample || channels == 0 {
				return nil, 0, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bits)
			}
			raw := data[body : body+size]
			if channels == 1 {
				return raw, sampleRate, nil
			}
			frame := channels * 2
			mono := make([]byte, 0, len(raw)/channels)
			for i := 0; i+frame <= len(raw); i += frame {
				mono = append(mono, raw[i], raw[i+1])
			}
			return mono, sampleRate, nil
		}
		pos = body + size + size%2
	}
	return nil, 0, fmt.Errorf("WAV data chunk not found")
}

// MeanAbsolute returns the mean absolute amplitude of samples
func MeanAbsolute(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

// CalculateRMS calculates the Root Mean Square energy of audio samples
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

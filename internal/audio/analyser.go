package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	AnalyserFFTSize   = 2048
	AnalyserSmoothing = 0.8

	// Band inspected for ambient noise
	NoiseBandLowHz  = 100.0
	NoiseBandHighHz = 500.0
	NoisyLevelDB    = -50.0

	// Reported instead of -Inf for silent bins
	MinDecibels = -160.0
)

// Analyser keeps the most recent fftSize samples of the signal it observes
// and exposes smoothed frequency data and raw time domain data on demand.
type Analyser struct {
	fftSize    int
	smoothing  float64
	sampleRate int

	ring *SampleRing
	fft  *fourier.FFT

	mu       sync.Mutex
	window   []float64
	frame    []float64
	samples  []float32
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser creates an analyser with the fixed FFT size and smoothing constant
func NewAnalyser(sampleRate int) *Analyser {
	coef := make([]float64, AnalyserFFTSize)
	for i := range coef {
		coef[i] = 1
	}
	return &Analyser{
		fftSize:    AnalyserFFTSize,
		smoothing:  AnalyserSmoothing,
		sampleRate: sampleRate,
		ring:       NewSampleRing(AnalyserFFTSize),
		fft:        fourier.NewFFT(AnalyserFFTSize),
		window:     window.Blackman(coef),
		frame:      make([]float64, AnalyserFFTSize),
		samples:    make([]float32, AnalyserFFTSize),
		smoothed:   make([]float64, AnalyserFFTSize/2),
	}
}

// Write feeds samples into the analyser
func (a *Analyser) Write(samples []float32) {
	a.ring.Write(samples)
}

// FFTSize returns the transform length
func (a *Analyser) FFTSize() int { return a.fftSize }

// FrequencyBinCount returns the number of frequency bins reported
func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// BinForFrequency maps a frequency in Hz to its bin index
func (a *Analyser) BinForFrequency(hz float64) int {
	if a.sampleRate <= 0 {
		return 0
	}
	bin := int(hz * float64(a.fftSize) / float64(a.sampleRate))
	if bin < 0 {
		return 0
	}
	if bin >= a.FrequencyBinCount() {
		return a.FrequencyBinCount() - 1
	}
	return bin
}

// FrequencyData returns per-bin magnitudes in dB. Each call advances the
// smoothing state, so callers should sample at a steady cadence.
func (a *Analyser) FrequencyData() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring.Snapshot(a.samples)
	for i, s := range a.samples {
		a.frame[i] = float64(s) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	out := make([]float64, len(a.smoothed))
	for k := range a.smoothed {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) / float64(a.fftSize)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		out[k] = toDecibels(a.smoothed[k])
	}
	return out
}

// TimeDomainData returns a copy of the most recent fftSize samples
func (a *Analyser) TimeDomainData() []float32 {
	out := make([]float32, a.fftSize)
	a.ring.Snapshot(out)
	return out
}

// NoiseLevel returns the mean dB level across the noise band
func (a *Analyser) NoiseLevel() float64 {
	data := a.FrequencyData()
	lo := a.BinForFrequency(NoiseBandLowHz)
	hi := a.BinForFrequency(NoiseBandHighHz)

	var sum float64
	for k := lo; k <= hi; k++ {
		sum += data[k]
	}
	return sum / float64(hi-lo+1)
}

func toDecibels(mag float64) float64 {
	if mag <= 0 {
		return MinDecibels
	}
	db := 20 * math.Log10(mag)
	if db < MinDecibels {
		return MinDecibels
	}
	return db
}

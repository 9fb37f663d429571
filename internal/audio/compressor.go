package audio

import "math"

// Noise reduction parameters. These are deployment constants, not runtime
// options.
const (
	NoiseThresholdDB = -50.0
	NoiseKneeDB      = 40.0
	NoiseRatio       = 12.0
	NoiseAttack      = 0.0  // seconds
	NoiseRelease     = 0.25 // seconds
)

// NoiseReduction is a dynamics compressor with fixed parameters that pushes
// low level background noise down relative to speech.
type NoiseReduction struct {
	threshold float64
	knee      float64
	ratio     float64

	attackCoef  float64
	releaseCoef float64
	makeupGain  float64

	// current gain reduction in dB (<= 0)
	envelope float64
}

// NewNoiseReduction creates the compressor for the given sample rate
func NewNoiseReduction(sampleRate int) *NoiseReduction {
	n := &NoiseReduction{
		threshold:   NoiseThresholdDB,
		knee:        NoiseKneeDB,
		ratio:       NoiseRatio,
		attackCoef:  smoothingCoef(NoiseAttack, sampleRate),
		releaseCoef: smoothingCoef(NoiseRelease, sampleRate),
	}
	// Makeup gain follows the Web Audio compressor: 0.6 power of the
	// inverse of the full range gain.
	fullRange := n.staticCurve(0)
	n.makeupGain = dbToLinear(-0.6 * fullRange)
	return n
}

func smoothingCoef(seconds float64, sampleRate int) float64 {
	if seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * float64(sampleRate)))
}

// staticCurve returns the gain change in dB for an input level in dB
// using a soft knee.
func (n *NoiseReduction) staticCurve(levelDB float64) float64 {
	over := levelDB - n.threshold
	switch {
	case 2*over < -n.knee:
		return 0
	case 2*math.Abs(over) <= n.knee:
		x := over + n.knee/2
		return (1/n.ratio - 1) * x * x / (2 * n.knee)
	default:
		return (1/n.ratio - 1) * over
	}
}

// Process compresses samples in place and returns them
func (n *NoiseReduction) Process(samples []float32) []float32 {
	for i, s := range samples {
		level := math.Abs(float64(s))
		levelDB := -120.0
		if level > 1e-6 {
			levelDB = 20 * math.Log10(level)
		}

		target := n.staticCurve(levelDB)
		coef := n.releaseCoef
		if target < n.envelope {
			coef = n.attackCoef
		}
		n.envelope = coef*n.envelope + (1-coef)*target

		samples[i] = float32(float64(s) * dbToLinear(n.envelope) * n.makeupGain)
	}
	return samples
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

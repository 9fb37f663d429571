package audio

import (
	"math"
	"testing"
)

// bandSignal returns one FFT frame of tones centred on every third bin
// from lo to hi.
func bandSignal(lo, hi int, amplitude float64) []float32 {
	out := make([]float32, AnalyserFFTSize)
	for k := lo; k <= hi; k += 3 {
		for n := range out {
			out[n] += float32(amplitude * math.Sin(2*math.Pi*float64(k)*float64(n)/AnalyserFFTSize))
		}
	}
	return out
}

func TestAnalyser_BinForFrequency(t *testing.T) {
	a := NewAnalyser(48000)

	if got := a.BinForFrequency(100); got != 4 {
		t.Errorf("Expected bin 4 for 100 Hz, got %d", got)
	}
	if got := a.BinForFrequency(500); got != 21 {
		t.Errorf("Expected bin 21 for 500 Hz, got %d", got)
	}
	if got := a.BinForFrequency(1e6); got != a.FrequencyBinCount()-1 {
		t.Errorf("Expected clamp to last bin, got %d", got)
	}
}

func TestAnalyser_SilenceIsQuiet(t *testing.T) {
	a := NewAnalyser(48000)
	a.Write(make([]float32, AnalyserFFTSize))

	if level := a.NoiseLevel(); level != MinDecibels {
		t.Errorf("Expected %f for silence, got %f", MinDecibels, level)
	}
}

func TestAnalyser_BandNoiseIsNoisy(t *testing.T) {
	a := NewAnalyser(48000)
	a.Write(bandSignal(4, 22, 0.2))

	// Let the smoothing settle
	for i := 0; i < 20; i++ {
		a.FrequencyData()
	}

	if level := a.NoiseLevel(); level <= NoisyLevelDB {
		t.Errorf("Expected level above %f, got %f", NoisyLevelDB, level)
	}
}

func TestAnalyser_SmoothingRampsUp(t *testing.T) {
	a := NewAnalyser(48000)
	a.Write(bandSignal(10, 10, 0.5))

	first := a.FrequencyData()[10]
	second := a.FrequencyData()[10]
	if second <= first {
		t.Errorf("Expected smoothed level to rise, got %f then %f", first, second)
	}
}

func TestAnalyser_TimeDomainData(t *testing.T) {
	a := NewAnalyser(16000)
	a.Write([]float32{0.25, 0.5})

	data := a.TimeDomainData()
	if len(data) != AnalyserFFTSize {
		t.Fatalf("Expected %d samples, got %d", AnalyserFFTSize, len(data))
	}
	if data[len(data)-2] != 0.25 || data[len(data)-1] != 0.5 {
		t.Errorf("Expected newest samples at the end, got %v", data[len(data)-2:])
	}
}

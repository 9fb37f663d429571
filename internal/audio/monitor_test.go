package audio

import (
	"context"
	"math"
	"testing"
	"time"
)

type fakeTicker struct{ c chan time.Time }

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               {}

type fakeClock struct {
	now    time.Time
	ticker *fakeTicker
}

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) NewTicker(time.Duration) Ticker {
	return f.ticker
}

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSpeechDetector_MinGap(t *testing.T) {
	d := NewSpeechDetector(nil)
	loud := constant(0.1, 64)

	if _, onset := d.ProcessFrame(loud, t0); !onset {
		t.Error("Expected first loud frame to be an onset")
	}
	if _, onset := d.ProcessFrame(loud, t0.Add(499*time.Millisecond)); onset {
		t.Error("Expected no onset within 500ms")
	}
	if _, onset := d.ProcessFrame(loud, t0.Add(500*time.Millisecond)); !onset {
		t.Error("Expected onset after 500ms")
	}
}

func TestSpeechDetector_Threshold(t *testing.T) {
	d := NewSpeechDetector(nil)

	amplitude, onset := d.ProcessFrame(constant(0.01, 64), t0)
	if onset {
		t.Errorf("Expected no onset at threshold, amplitude %f", amplitude)
	}
	if _, onset := d.ProcessFrame(constant(0.02, 64), t0); !onset {
		t.Error("Expected onset above threshold")
	}
}

func TestMonitor_NoiseAtMostOncePerSecond(t *testing.T) {
	a := NewAnalyser(48000)
	m := NewMonitor(a, nil, nil)

	var samples []NoiseSample
	m.OnNoiseLevel(func(s NoiseSample) { samples = append(samples, s) })

	m.Tick(t0)
	m.Tick(t0.Add(16 * time.Millisecond))
	m.Tick(t0.Add(999 * time.Millisecond))
	m.Tick(t0.Add(time.Second))
	m.Tick(t0.Add(1500 * time.Millisecond))

	if len(samples) != 2 {
		t.Fatalf("Expected 2 noise samples, got %d", len(samples))
	}
	if !samples[1].At.Equal(t0.Add(time.Second)) {
		t.Errorf("Expected second sample at 1s, got %v", samples[1].At)
	}
	if samples[0].Noisy {
		t.Error("Expected silence not to be noisy")
	}
}

func TestMonitor_NoiseSampleCarriesRMS(t *testing.T) {
	a := NewAnalyser(16000)
	m := NewMonitor(a, nil, nil)

	var samples []NoiseSample
	m.OnNoiseLevel(func(s NoiseSample) { samples = append(samples, s) })

	m.Tick(t0)
	a.Write(constant(0.5, AnalyserFFTSize))
	m.Tick(t0.Add(time.Second))

	if len(samples) != 2 {
		t.Fatalf("Expected 2 noise samples, got %d", len(samples))
	}
	if samples[0].RMS != 0 {
		t.Errorf("Expected zero RMS for silence, got %f", samples[0].RMS)
	}
	if math.Abs(samples[1].RMS-0.5) > 1e-6 {
		t.Errorf("Expected RMS 0.5, got %f", samples[1].RMS)
	}
}

func TestMonitor_SpeechOnsets(t *testing.T) {
	a := NewAnalyser(16000)
	m := NewMonitor(a, nil, nil)

	var onsets []SpeechOnset
	m.OnSpeechOnset(func(o SpeechOnset) { onsets = append(onsets, o) })

	m.Tick(t0)
	a.Write(constant(0.5, AnalyserFFTSize))
	m.Tick(t0.Add(100 * time.Millisecond))
	m.Tick(t0.Add(300 * time.Millisecond))
	m.Tick(t0.Add(600 * time.Millisecond))

	if len(onsets) != 2 {
		t.Fatalf("Expected 2 onsets, got %d", len(onsets))
	}
	if !onsets[0].At.Equal(t0.Add(100 * time.Millisecond)) {
		t.Errorf("Unexpected first onset time %v", onsets[0].At)
	}
	if !onsets[1].At.Equal(t0.Add(600 * time.Millisecond)) {
		t.Errorf("Unexpected second onset time %v", onsets[1].At)
	}
}

func TestMonitor_RunUsesClock(t *testing.T) {
	clock := &fakeClock{now: t0, ticker: &fakeTicker{c: make(chan time.Time)}}
	a := NewAnalyser(16000)
	a.Write(constant(0.5, 64))
	m := NewMonitor(a, clock, nil)

	onsets := make(chan SpeechOnset, 1)
	m.OnSpeechOnset(func(o SpeechOnset) { onsets <- o })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	clock.ticker.c <- t0
	select {
	case o := <-onsets:
		if !o.At.Equal(t0) {
			t.Errorf("Expected onset at tick time, got %v", o.At)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for onset")
	}

	cancel()
	<-done
}

package audio

import (
	"testing"
)

func TestSampleRing_PartialFillIsZeroPadded(t *testing.T) {
	r := NewSampleRing(5)
	r.Write([]float32{1, 2})
	r.Write([]float32{3})

	dst := make([]float32, 5)
	if n := r.Snapshot(dst); n != 5 {
		t.Fatalf("Expected 5 samples, got %d", n)
	}
	expected := []float32{0, 0, 1, 2, 3}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Errorf("Expected %v at position %d, got %v", expected[i], i, dst[i])
		}
	}
}

func TestSampleRing_Overwrite(t *testing.T) {
	r := NewSampleRing(4)

	r.Write([]float32{1, 2, 3})
	r.Write([]float32{4, 5, 6})

	dst := make([]float32, 4)
	n := r.Snapshot(dst)
	if n != 4 {
		t.Fatalf("Expected 4 samples, got %d", n)
	}
	expected := []float32{3, 4, 5, 6}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Errorf("Expected %v at position %d, got %v", expected[i], i, dst[i])
		}
	}
}

func TestSampleRing_LongWriteKeepsTail(t *testing.T) {
	r := NewSampleRing(3)
	r.Write([]float32{1, 2, 3, 4, 5, 6, 7})

	dst := make([]float32, 3)
	r.Snapshot(dst)
	if dst[0] != 5 || dst[1] != 6 || dst[2] != 7 {
		t.Errorf("Expected [5 6 7], got %v", dst)
	}
}

func TestSampleRing_SnapshotShorterThanRing(t *testing.T) {
	r := NewSampleRing(8)
	r.Write([]float32{1, 2, 3, 4, 5})

	dst := make([]float32, 2)
	r.Snapshot(dst)
	if dst[0] != 4 || dst[1] != 5 {
		t.Errorf("Expected newest samples [4 5], got %v", dst)
	}
}

package device

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Source
	}{
		{"MacBook Pro Microphone", SourceUser},
		{"BlackHole 2ch", SourceSystem},
		{"Monitor of Built-in Audio", SourceSystem},
		{"USB Mic", SourceUser},
		{"HDMI Output", SourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestPrefer(t *testing.T) {
	if !prefer("MacBook Air Microphone", "USB Microphone") {
		t.Error("Expected built-in microphone to be preferred")
	}
	if prefer("USB Microphone", "MacBook Air Microphone") {
		t.Error("Expected external microphone not to replace built-in")
	}
}

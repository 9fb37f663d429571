package stt

import (
	"fmt"

	"github.com/lexiqai/meeting-recorder/internal/config"
)

// NewProvider returns the provider selected by configuration
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.STTProvider {
	case config.ProviderDeepgram:
		return NewDeepgramProvider(cfg.DeepgramModel, cfg.DeepgramLanguage), nil
	case config.ProviderMistral:
		return NewMistralProvider(cfg.MistralModel), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}

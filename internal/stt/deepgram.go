package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// DeepgramProvider transcribes recordings with Deepgram's prerecorded API
type DeepgramProvider struct {
	model    string
	language string
}

// NewDeepgramProvider creates a Deepgram provider
func NewDeepgramProvider(model, language string) *DeepgramProvider {
	return &DeepgramProvider{model: model, language: language}
}

// Name returns the provider name
func (p *DeepgramProvider) Name() string { return "deepgram" }

// utterance holds the response fields we use. Speaker is absent when
// diarization could not attribute the utterance.
type utterance struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript"`
	Speaker    *int    `json:"speaker"`
}

// Transcribe sends the recording and maps diarized utterances to segments
func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, apiKey string) ([]Segment, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      p.model,
		Language:   p.language,
		Punctuate:  true,
		Diarize:    true,
		Utterances: true,
	}

	client := listenClient.NewREST(apiKey, &interfaces.ClientOptions{})
	dg := api.New(client)

	res, err := dg.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return nil, fmt.Errorf("deepgram transcription failed: %w", err)
	}
	if res == nil {
		return nil, ErrNoSpeech
	}

	// Round-trip through JSON so only the fields above are relied upon
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding deepgram response: %w", err)
	}
	var decoded struct {
		Results struct {
			Utterances []utterance `json:"utterances"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding deepgram response: %w", err)
	}

	segments := segmentsFromUtterances(decoded.Results.Utterances)
	if len(segments) == 0 {
		return nil, ErrNoSpeech
	}
	return segments, nil
}

func segmentsFromUtterances(utterances []utterance) []Segment {
	var segments []Segment
	for _, u := range utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" {
			continue
		}
		seg := Segment{
			Text:  text,
			Start: seconds(u.Start),
			End:   seconds(u.End),
		}
		if u.Speaker != nil {
			seg.Speaker = fmt.Sprintf("Speaker %d", *u.Speaker+1)
		}
		segments = append(segments, seg)
	}
	return segments
}

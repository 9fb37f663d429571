package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/resilience"
)

const mistralTranscriptionsURL = "https://api.mistral.ai/v1/audio/transcriptions"

// MistralProvider transcribes through the Mistral Voxtral API
type MistralProvider struct {
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewMistralProvider creates a Mistral provider for model
func NewMistralProvider(model string) *MistralProvider {
	return &MistralProvider{
		model:      model,
		endpoint:   mistralTranscriptionsURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Name returns the provider name
func (p *MistralProvider) Name() string { return "mistral" }

// mistralResponse matches the Mistral transcription API response
type mistralResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads a WAV recording and returns its diarized segments
func (p *MistralProvider) Transcribe(ctx context.Context, audio []byte, apiKey string) ([]Segment, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", p.model); err != nil {
		return nil, err
	}
	if err := writer.WriteField("diarize", "true"); err != nil {
		return nil, err
	}
	if err := writer.WriteField("timestamp_granularities", "segment"); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", "recording.wav")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Mistral API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("mistral API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}

	var apiResp mistralResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing Mistral response: %w", err)
	}

	var segments []Segment
	for _, seg := range apiResp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Speaker: seg.Speaker,
			Text:    text,
			Start:   seconds(seg.Start),
			End:     seconds(seg.End),
		})
	}

	// No diarization: the whole text is one segment
	if len(segments) == 0 {
		text := strings.TrimSpace(apiResp.Text)
		if text == "" {
			return nil, ErrNoSpeech
		}
		segments = append(segments, Segment{Text: text})
	}
	return segments, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

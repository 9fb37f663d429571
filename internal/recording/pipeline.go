package recording

import (
	"strings"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/minutes"
	"github.com/lexiqai/meeting-recorder/internal/speaker"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/rs/zerolog"
)

// TimestampLayout formats segment wall-clock times
const TimestampLayout = "15:04:05"

// Emotion is an optional per-segment annotation. None of the current
// providers return one.
type Emotion struct {
	Type       string  `json:"type" yaml:"type"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// TranscriptionSegment is one resolved line of the transcript
type TranscriptionSegment struct {
	Speaker   string                 `json:"speaker" yaml:"speaker"`
	Text      string                 `json:"text" yaml:"text"`
	Timestamp string                 `json:"timestamp" yaml:"timestamp"`
	StartMs   int64                  `json:"startMs" yaml:"startMs"`
	EndMs     int64                  `json:"endMs" yaml:"endMs"`
	Emotion   *Emotion               `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Triggers  []minutes.TriggerMatch `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// Transcript is everything derived from one recording
type Transcript struct {
	Segments        []TranscriptionSegment    `json:"segments" yaml:"segments"`
	Minutes         *minutes.MeetingMinutes   `json:"minutes" yaml:"minutes"`
	CalendarIntents []minutes.CalendarIntent `json:"calendarIntents,omitempty" yaml:"calendarIntents,omitempty"`
}

// Text renders the transcript as "[HH:MM:SS] Speaker: text" lines
func (t *Transcript) Text() string {
	var b strings.Builder
	for i, s := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[")
		b.WriteString(s.Timestamp)
		b.WriteString("] ")
		b.WriteString(s.Speaker)
		b.WriteString(": ")
		b.WriteString(s.Text)
	}
	return b.String()
}

// Pipeline resolves speakers and extracts minutes from provider segments
type Pipeline struct {
	registry *speaker.Registry
	identify bool
	logger   zerolog.Logger
}

// NewPipeline creates a pipeline. A nil registry disables speaker identification.
func NewPipeline(registry *speaker.Registry, identify bool, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		identify: identify && registry != nil,
		logger:   logger,
	}
}

// Process handles segments in provider order, folding results into m.
// startedAt anchors segment offsets to wall-clock time.
func (p *Pipeline) Process(startedAt time.Time, segments []stt.Segment, m *minutes.MeetingMinutes) *Transcript {
	if m == nil {
		m = &minutes.MeetingMinutes{}
	}
	t := &Transcript{
		Segments: make([]TranscriptionSegment, 0, len(segments)),
		Minutes:  m,
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		at := startedAt.Add(seg.Start)

		out := TranscriptionSegment{
			Speaker:   p.resolveSpeaker(seg, text, at, m),
			Text:      text,
			Timestamp: at.Format(TimestampLayout),
			StartMs:   seg.Start.Milliseconds(),
			EndMs:     seg.End.Milliseconds(),
		}

		out.Triggers = minutes.FindTriggers(text)
		minutes.UpdateWithTriggers(m, out.Triggers)
		t.CalendarIntents = append(t.CalendarIntents, minutes.FindCalendarIntents(text, at)...)

		t.Segments = append(t.Segments, out)
	}

	p.logger.Debug().
		Int("segments", len(t.Segments)).
		Int("participants", len(m.Participants)).
		Int("calendar_intents", len(t.CalendarIntents)).
		Msg("Transcript processed")
	return t
}

func (p *Pipeline) resolveSpeaker(seg stt.Segment, text string, at time.Time, m *minutes.MeetingMinutes) string {
	if !p.identify {
		if seg.Speaker != "" {
			return seg.Speaker
		}
		return speaker.UnknownSpeaker
	}

	features := speaker.FeaturesFromText(text)
	if name, ok := speaker.ExtractName(text); ok {
		p.registry.AddProfileAt(name, features, at)
		if m.AddParticipant(name) {
			p.logger.Debug().Str("name", name).Msg("Participant recognized")
		}
	}

	name := p.registry.IdentifyMostSimilarSpeaker(features, at)
	if name == speaker.UnknownSpeaker && seg.Speaker != "" {
		return seg.Speaker
	}
	return name
}

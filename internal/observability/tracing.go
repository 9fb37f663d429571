package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for recording spans.
const TracerName = "meeting-recorder"

// Span attribute keys
const (
	AttrSessionID = "session_id"
	AttrMeetingID = "meeting_id"
	AttrProvider  = "provider"
	AttrBytes     = "audio_bytes"
	AttrSegments  = "segments"
	AttrAudioPath = "audio_path"
)

// Span names
const (
	SpanStop          = "recording.stop"
	SpanTranscribe    = "recording.transcribe"
	SpanPersistAudio  = "recording.persist_audio"
	SpanPersistRecord = "recording.persist_record"
)

// Tracer wraps the global otel tracer for recording operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer backed by the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartStopSpan starts the root span for a stop sequence.
func (t *Tracer) StartStopSpan(ctx context.Context, sessionID, meetingID string, bytes int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanStop, trace.WithAttributes(
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrMeetingID, meetingID),
		attribute.Int64(AttrBytes, bytes),
	))
}

// StartSpan starts a child span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Package storage persists recorded audio and transcription records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/config"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// TranscriptionRecord is the persisted transcript of one recording
type TranscriptionRecord struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meeting_id"`
	AudioPath string    `json:"audio_path"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DurableStore persists audio blobs and transcription records
type DurableStore interface {
	// SaveAudio stores blob under a name derived from name and returns its path
	SaveAudio(ctx context.Context, blob []byte, name string) (string, error)
	// SaveTranscriptionRecord stores the transcript of the audio at audioPath
	SaveTranscriptionRecord(ctx context.Context, meetingID, audioPath, text string) (*TranscriptionRecord, error)
	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by STORAGE_BACKEND
func Open(ctx context.Context, cfg *config.Config) (DurableStore, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageLocal, "":
		s, err := NewLocalStore(cfg.AudioStorageDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// cleanName reduces name to a safe file name
func cleanName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "recording.wav"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '\\', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const recordsFile = "transcriptions.jsonl"

// LocalStore keeps audio files and a JSON lines record log in a directory
type LocalStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewLocalStore creates the directory layout under dir
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &LocalStore{dir: dir, now: time.Now}, nil
}

// SaveAudio writes blob to audio/<uuid>-<name> and returns the path relative to the store
func (s *LocalStore) SaveAudio(ctx context.Context, blob []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Join("audio", uuid.New().String()+"-"+cleanName(name))
	if err := os.WriteFile(filepath.Join(s.dir, rel), blob, 0o644); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// SaveTranscriptionRecord appends a record to the record log
func (s *LocalStore) SaveTranscriptionRecord(ctx context.Context, meetingID, audioPath, text string) (*TranscriptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := &TranscriptionRecord{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		AudioPath: audioPath,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, recordsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening record log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("writing record: %w", err)
	}
	return rec, nil
}

// ListTranscriptionRecords returns every record for meetingID, oldest first.
// An empty meetingID returns all records.
func (s *LocalStore) ListTranscriptionRecords(meetingID string) ([]TranscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, recordsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []TranscriptionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec TranscriptionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		if meetingID == "" || rec.MeetingID == meetingID {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}

// ReadAudio returns the audio stored at path
func (s *LocalStore) ReadAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Ping checks the directory is still there
func (s *LocalStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

// Close is a no-op
func (s *LocalStore) Close() error { return nil }

package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS meeting_audio (
	path       TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS transcriptions (
	id         UUID PRIMARY KEY,
	meeting_id TEXT NOT NULL,
	audio_path TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transcriptions_meeting_id_idx ON transcriptions (meeting_id);
`

// PostgresStore implements DurableStore using PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to databaseURL and ensures the tables exist
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables used by the store
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveAudio stores blob in meeting_audio and returns its path key
func (s *PostgresStore) SaveAudio(ctx context.Context, blob []byte, name string) (string, error) {
	path := "audio/" + uuid.New().String() + "-" + cleanName(name)

	query := `INSERT INTO meeting_audio (path, data) VALUES ($1, $2)`
	if _, err := s.db.Exec(ctx, query, path, blob); err != nil {
		return "", fmt.Errorf("inserting audio: %w", err)
	}
	return path, nil
}

// SaveTranscriptionRecord inserts a transcription row
func (s *PostgresStore) SaveTranscriptionRecord(ctx context.Context, meetingID, audioPath, text string) (*TranscriptionRecord, error) {
	rec := &TranscriptionRecord{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		AudioPath: audioPath,
		Text:      text,
	}

	query := `
		INSERT INTO transcriptions (id, meeting_id, audio_path, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	if err := s.db.QueryRow(ctx, query, rec.ID, meetingID, audioPath, text).Scan(&rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting transcription: %w", err)
	}
	return rec, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

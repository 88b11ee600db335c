package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ytrag/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		video_id TEXT PRIMARY KEY,
		detected_language TEXT NOT NULL,
		source TEXT,
		fetched_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_fetched_at ON videos(fetched_at);

	CREATE TABLE IF NOT EXISTS transcript_entries (
		video_id TEXT NOT NULL,
		entry_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		original_text TEXT NOT NULL,
		start_time REAL NOT NULL,
		duration REAL NOT NULL,
		detected_language TEXT,
		PRIMARY KEY (video_id, entry_index),
		FOREIGN KEY (video_id) REFERENCES videos(video_id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveTranscript replaces the cached transcript for t.VideoID in one transaction.
func (s *SQLiteStorage) SaveTranscript(ctx context.Context, t *models.Transcript) error {
	if t.VideoID == "" {
		return errors.New("transcript has no video id")
	}
	if t.FetchedAt.IsZero() {
		t.FetchedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_entries WHERE video_id = ?`, t.VideoID); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO videos (video_id, detected_language, source, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET detected_language = excluded.detected_language,
		 source = excluded.source, fetched_at = excluded.fetched_at`,
		t.VideoID, t.DetectedLanguage, t.Source, t.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save video: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_entries (video_id, entry_index, text, original_text, start_time, duration, detected_language)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range t.Entries {
		if _, err := stmt.ExecContext(ctx, t.VideoID, i, e.Text, e.OriginalText, e.StartTime, e.Duration, e.DetectedLanguage); err != nil {
			return fmt.Errorf("failed to save entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetTranscript returns the cached transcript for videoID, or ErrNotFound.
func (s *SQLiteStorage) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	t := &models.Transcript{VideoID: videoID}
	var source sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT detected_language, source, fetched_at FROM videos WHERE video_id = ?`, videoID,
	).Scan(&t.DetectedLanguage, &source, &t.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, videoID)
	}
	if err != nil {
		return nil, err
	}
	t.Source = source.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT text, original_text, start_time, duration, detected_language
		 FROM transcript_entries WHERE video_id = ? ORDER BY entry_index`, videoID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.TranscriptEntry
		var lang sql.NullString
		if err := rows.Scan(&e.Text, &e.OriginalText, &e.StartTime, &e.Duration, &lang); err != nil {
			return nil, err
		}
		e.DetectedLanguage = lang.String
		t.Entries = append(t.Entries, e)
	}
	return t, rows.Err()
}

// ListVideos returns cached videos, most recently fetched first.
func (s *SQLiteStorage) ListVideos(ctx context.Context, offset, limit int) ([]*models.VideoSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.video_id, v.detected_language, v.source, v.fetched_at,
		        (SELECT COUNT(*) FROM transcript_entries e WHERE e.video_id = v.video_id)
		 FROM videos v ORDER BY v.fetched_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.VideoSummary
	for rows.Next() {
		var v models.VideoSummary
		var source sql.NullString
		if err := rows.Scan(&v.VideoID, &v.DetectedLanguage, &source, &v.FetchedAt, &v.EntryCount); err != nil {
			return nil, err
		}
		v.Source = source.String
		out = append(out, &v)
	}
	return out, rows.Err()
}

// CountVideos returns the number of cached transcripts.
func (s *SQLiteStorage) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}

// CountEntries returns the total number of cached transcript entries.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Package storage persists fetched transcripts so repeat requests can skip the caption source.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ytrag/internal/models"
)

// ErrNotFound is returned when no transcript is cached for a video.
var ErrNotFound = errors.New("transcript not found")

// Storage defines transcript cache operations.
type Storage interface {
	// SaveTranscript stores t, replacing any previous transcript for the same video.
	SaveTranscript(ctx context.Context, t *models.Transcript) error
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
	ListVideos(ctx context.Context, offset, limit int) ([]*models.VideoSummary, error)

	// Stats
	CountVideos(ctx context.Context) (int64, error)
	CountEntries(ctx context.Context) (int64, error)

	Close() error
}

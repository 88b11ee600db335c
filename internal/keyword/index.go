// Package keyword indexes transcript entries for exact-word "moment" lookup within a video.
package keyword

import (
	"context"

	"github.com/hyperjump/ytrag/internal/models"
)

// SearchOptions optional parameters for moment search. Nil means use defaults.
type SearchOptions struct {
	// PhraseBoost multiplies the score of entries where the query terms appear together.
	// Use 1.0 for no boost.
	PhraseBoost float64
	// FuzzyFallback retries with fuzzy matching when the exact search finds nothing.
	FuzzyFallback bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 1.
	Fuzziness int
}

// MomentIndex stores transcript entries and finds the ones matching a query.
type MomentIndex interface {
	// IndexTranscript replaces all entries of t.VideoID with t.Entries.
	IndexTranscript(ctx context.Context, t *models.Transcript) error
	Search(ctx context.Context, videoID, query string, limit int, opts *SearchOptions) ([]*MomentHit, error)
	DeleteVideo(ctx context.Context, videoID string) error
	DocCount() (uint64, error)
	Close() error
}

// MomentHit is one matching transcript entry.
type MomentHit struct {
	ID        string
	VideoID   string
	Index     int
	StartTime float64
	Text      string
	Score     float64
	Fuzzy     bool // matched only after the fuzzy retry
}

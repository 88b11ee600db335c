// Package segmenter splits transcript entries into overlapping, timed chunks for retrieval.
package segmenter

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/translate"
	"go.uber.org/zap"
)

const (
	// DefaultTargetSize is the number of characters of new text that triggers a flush.
	DefaultTargetSize = 2500
	// DefaultOverlapEntries is how many trailing entries of a chunk are repeated at the start of the next.
	DefaultOverlapEntries = 2
)

// Segmenter groups entries with a sliding window: a chunk is flushed once enough
// new text has accumulated, and the next chunk starts with the tail of the previous one.
type Segmenter struct {
	targetSize     int
	overlapEntries int
	targetLanguage string
	logger         *zap.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets a logger for debug output (chunk flushes, translation fallbacks).
func WithLogger(l *zap.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// WithTargetLanguage sets the language chunks are translated into (default "en").
func WithTargetLanguage(lang string) Option {
	return func(s *Segmenter) { s.targetLanguage = lang }
}

// New creates a segmenter. Non-positive targetSize falls back to DefaultTargetSize;
// negative overlapEntries falls back to DefaultOverlapEntries.
func New(targetSize, overlapEntries int, opts ...Option) *Segmenter {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlapEntries < 0 {
		overlapEntries = DefaultOverlapEntries
	}
	s := &Segmenter{
		targetSize:     targetSize,
		overlapEntries: overlapEntries,
		targetLanguage: "en",
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// window is the chunk under construction.
type window struct {
	entries  []models.TranscriptEntry
	text     strings.Builder
	start    float64
	duration float64
	fresh    int // characters appended since the last flush
}

func (w *window) add(e models.TranscriptEntry) {
	if len(w.entries) == 0 {
		w.start = e.StartTime
	}
	w.entries = append(w.entries, e)
	w.text.WriteString(e.Text)
	w.duration += e.Duration
	w.fresh += utf8.RuneCountInString(e.Text)
}

// carry resets the window to the last n entries of the flushed chunk.
func (w *window) carry(n int) {
	if n > len(w.entries) {
		n = len(w.entries)
	}
	tail := append([]models.TranscriptEntry(nil), w.entries[len(w.entries)-n:]...)
	w.entries = tail
	w.text.Reset()
	w.duration = 0
	w.start = 0
	for i, e := range tail {
		if i == 0 {
			w.start = e.StartTime
		}
		w.text.WriteString(e.Text)
		w.duration += e.Duration
	}
	w.fresh = 0
}

// Segment splits entries into chunks for videoID. language is the transcript's detected
// language; when it differs from the target language and tr is non-nil, each chunk's
// content is translated once. A failed translation keeps the original text.
// Empty input yields no chunks.
func (s *Segmenter) Segment(ctx context.Context, entries []models.TranscriptEntry, videoID, language string, tr translate.Translator) []*models.Chunk {
	if len(entries) == 0 {
		return nil
	}
	translateChunks := tr != nil && translate.NeedsTranslation(language, s.targetLanguage)

	var chunks []*models.Chunk
	w := &window{}
	for _, e := range entries {
		w.add(e)
		if w.fresh >= s.targetSize {
			chunks = append(chunks, s.flush(ctx, w, videoID, language, tr, translateChunks))
			w.carry(s.overlapEntries)
		}
	}
	if w.fresh > 0 {
		chunks = append(chunks, s.flush(ctx, w, videoID, language, tr, translateChunks))
	}
	s.logger.Debug("transcript segmented",
		zap.String("video_id", videoID),
		zap.Int("entries", len(entries)),
		zap.Int("chunks", len(chunks)),
		zap.Bool("translate", translateChunks))
	return chunks
}

func (s *Segmenter) flush(ctx context.Context, w *window, videoID, language string, tr translate.Translator, translateChunk bool) *models.Chunk {
	content := w.text.String()
	if translateChunk {
		translated, err := tr.Translate(ctx, content)
		if err != nil {
			s.logger.Debug("chunk translation skipped", zap.String("video_id", videoID), zap.Error(err))
		} else if strings.TrimSpace(translated) != "" {
			content = translated
		}
	}
	return &models.Chunk{
		Content:          content,
		StartTime:        w.start,
		Duration:         w.duration,
		Segments:         append([]models.TranscriptEntry(nil), w.entries...),
		VideoID:          videoID,
		DetectedLanguage: language,
	}
}

// Package transcript fetches caption tracks for videos and converts them to transcript entries.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/pkg/utils"
)

// Fetcher retrieves the transcript of a video, preferring the given language codes in order.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error)
	Name() string
}

// Kind classifies why a transcript could not be fetched.
type Kind int

const (
	KindUnknown Kind = iota
	KindTranscriptsDisabled
	KindNoTranscriptFound
	KindVideoUnavailable
)

var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found for this video")
	ErrVideoUnavailable    = errors.New("video is unavailable")
)

func (k Kind) String() string {
	switch k {
	case KindTranscriptsDisabled:
		return "transcripts_disabled"
	case KindNoTranscriptFound:
		return "no_transcript_found"
	case KindVideoUnavailable:
		return "video_unavailable"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTranscriptsDisabled:
		return ErrTranscriptsDisabled
	case KindNoTranscriptFound:
		return ErrNoTranscriptFound
	case KindVideoUnavailable:
		return ErrVideoUnavailable
	}
	return nil
}

// Error is a fetch failure with its classification. It matches the Err* sentinels with errors.Is.
type Error struct {
	Kind    Kind
	VideoID string
	Source  string
	Err     error
}

func (e *Error) Error() string {
	msg := "failed to fetch transcript"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s (video %s via %s)", msg, e.VideoID, e.Source)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, videoID, source string, err error) *Error {
	return &Error{Kind: kind, VideoID: videoID, Source: source, Err: err}
}

// KindOf returns the classification of err, or KindUnknown when err is not a fetch Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Cue is a timed caption as read from a caption file.
type Cue struct {
	Start    float64
	Duration float64
	Text     string
}

// EntriesFromCues normalizes cues into transcript entries in language.
// Text is whitespace-collapsed and given a trailing space; empty cues are dropped.
func EntriesFromCues(cues []Cue, language string) []models.TranscriptEntry {
	entries := make([]models.TranscriptEntry, 0, len(cues))
	for _, c := range cues {
		text := utils.CollapseWhitespace(c.Text)
		if text == "" {
			continue
		}
		dur := c.Duration
		if dur < 0 {
			dur = 0
		}
		start := c.Start
		if start < 0 {
			start = 0
		}
		entries = append(entries, models.TranscriptEntry{
			Text:             text + " ",
			OriginalText:     c.Text,
			StartTime:        start,
			Duration:         dur,
			DetectedLanguage: language,
		})
	}
	return entries
}

// ParseLanguages splits a comma-separated language list, trimming blanks.
func ParseLanguages(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveLanguage returns the track language when it is a known code, otherwise detects it from the entries.
func resolveLanguage(trackLanguage string, cues []Cue) string {
	lang := strings.TrimSpace(trackLanguage)
	if lang != "" && !strings.EqualFold(lang, models.LanguageUnknown) {
		return lang
	}
	return DetectLanguage(cues)
}

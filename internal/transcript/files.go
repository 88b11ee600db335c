package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ytrag/internal/models"
)

// Files reads caption files dropped into a directory. A video's captions live at
// <dir>/<videoID>.vtt or <dir>/<videoID>.<lang>.vtt.
type Files struct {
	dir string
}

// NewFiles returns a fetcher over dir.
func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

// Name returns the source name used in errors and logs.
func (f *Files) Name() string { return "files" }

// Dir returns the captions directory.
func (f *Files) Dir() string { return f.dir }

// Fetch implements Fetcher.
func (f *Files) Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error) {
	if f.dir == "" {
		return nil, newError(KindNoTranscriptFound, videoID, f.Name(), fmt.Errorf("no captions directory configured"))
	}
	candidates, _ := filepath.Glob(filepath.Join(f.dir, videoID+".*.vtt"))
	if plain := filepath.Join(f.dir, videoID+".vtt"); fileExists(plain) {
		candidates = append([]string{plain}, candidates...)
	}
	if len(candidates) == 0 {
		return nil, newError(KindNoTranscriptFound, videoID, f.Name(), nil)
	}
	path := chooseSubtitleFile(candidates, videoID, languages)
	return ReadCaptionFile(path, videoID)
}

// ReadCaptionFile parses a WebVTT file into a transcript for videoID.
// The language comes from a "<id>.<lang>.vtt" name when present, otherwise it is detected.
func ReadCaptionFile(path, videoID string) (*models.Transcript, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindUnknown, videoID, "files", fmt.Errorf("failed to read %s: %w", path, err))
	}
	cues, err := ParseVTT(string(content))
	if err != nil {
		return nil, newError(KindUnknown, videoID, "files", err)
	}
	if len(cues) == 0 {
		return nil, newError(KindNoTranscriptFound, videoID, "files", fmt.Errorf("%s has no cues", filepath.Base(path)))
	}
	trackLang := ""
	if lang := subtitleLanguage(path, videoID); lang != strings.TrimSuffix(filepath.Base(path), ".vtt") {
		trackLang = lang
	}
	lang := resolveLanguage(trackLang, cues)
	return &models.Transcript{
		VideoID:          videoID,
		DetectedLanguage: lang,
		Source:           "files",
		Entries:          EntriesFromCues(cues, lang),
		FetchedAt:        time.Now(),
	}, nil
}

// VideoIDFromCaptionPath returns the video id encoded in a caption file name.
func VideoIDFromCaptionPath(path string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return ParseVideoID(name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

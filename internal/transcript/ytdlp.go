package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/ytrag/internal/models"
)

// YtDlp downloads captions with the yt-dlp command-line tool.
type YtDlp struct {
	path    string
	timeout time.Duration
}

// NewYtDlp returns a fetcher running the yt-dlp binary at path ("yt-dlp" when empty).
func NewYtDlp(path string, timeout time.Duration) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{path: path, timeout: timeout}
}

// Name returns the source name used in errors and logs.
func (y *YtDlp) Name() string { return "yt-dlp" }

// Available reports whether the yt-dlp binary can be found.
func (y *YtDlp) Available() bool {
	_, err := exec.LookPath(y.path)
	return err == nil
}

// Fetch implements Fetcher.
func (y *YtDlp) Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error) {
	if !y.Available() {
		return nil, newError(KindUnknown, videoID, y.Name(), fmt.Errorf("%s not found in PATH", y.path))
	}
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "ytrag-subs-*")
	if err != nil {
		return nil, newError(KindUnknown, videoID, y.Name(), fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	subLangs := "all"
	if len(languages) > 0 {
		subLangs = strings.Join(languages, ",")
	}
	cmd := exec.CommandContext(ctx, y.path,
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-format", "vtt",
		"--sub-langs", subLangs,
		"--no-warnings",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"https://www.youtube.com/watch?v="+videoID)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		kind := KindUnknown
		if strings.Contains(msg, "Video unavailable") || strings.Contains(msg, "Private video") {
			kind = KindVideoUnavailable
		}
		return nil, newError(kind, videoID, y.Name(), fmt.Errorf("error downloading subtitles: %w\nstderr: %s", err, msg))
	}

	files, err := filepath.Glob(filepath.Join(dir, videoID+".*.vtt"))
	if err != nil || len(files) == 0 {
		return nil, newError(KindNoTranscriptFound, videoID, y.Name(), nil)
	}
	file := chooseSubtitleFile(files, videoID, languages)
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, newError(KindUnknown, videoID, y.Name(), fmt.Errorf("failed to read subtitles: %w", err))
	}
	cues, err := ParseVTT(string(content))
	if err != nil {
		return nil, newError(KindUnknown, videoID, y.Name(), err)
	}
	if len(cues) == 0 {
		return nil, newError(KindNoTranscriptFound, videoID, y.Name(), fmt.Errorf("%s has no cues", filepath.Base(file)))
	}
	lang := resolveLanguage(subtitleLanguage(file, videoID), cues)
	return &models.Transcript{
		VideoID:          videoID,
		DetectedLanguage: lang,
		Source:           y.Name(),
		Entries:          EntriesFromCues(cues, lang),
		FetchedAt:        time.Now(),
	}, nil
}

// subtitleLanguage extracts <lang> from "<id>.<lang>.vtt".
func subtitleLanguage(file, videoID string) string {
	name := strings.TrimSuffix(filepath.Base(file), ".vtt")
	return strings.TrimPrefix(name, videoID+".")
}

func chooseSubtitleFile(files []string, videoID string, languages []string) string {
	codes := make([]string, len(files))
	for i, f := range files {
		codes[i] = subtitleLanguage(f, videoID)
	}
	if i := pickLanguage(languages, codes); i >= 0 {
		return files[i]
	}
	return files[0]
}

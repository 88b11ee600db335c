package transcript

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/hyperjump/ytrag/internal/models"
)

// detectionSample is the number of leading cues used for language detection.
const detectionSample = 20

// DetectLanguage guesses the ISO 639-1 code of the cues' text, or "unknown".
func DetectLanguage(cues []Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		if i >= detectionSample {
			break
		}
		sb.WriteString(c.Text)
		sb.WriteByte(' ')
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return models.LanguageUnknown
	}
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return models.LanguageUnknown
}

// pickLanguage returns the first preferred code matched by available, comparing base codes
// ("en" matches "en-US"). Returns -1 when nothing matches.
func pickLanguage(preferred []string, available []string) int {
	for _, want := range preferred {
		for i, have := range available {
			if strings.EqualFold(have, want) {
				return i
			}
		}
		for i, have := range available {
			if strings.EqualFold(baseCode(have), baseCode(want)) {
				return i
			}
		}
	}
	return -1
}

func baseCode(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

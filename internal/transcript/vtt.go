package transcript

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var vttTag = regexp.MustCompile(`<[^>]*>`)

// ParseVTT parses WebVTT content into cues. Inline tags are stripped, cue settings
// ignored, and the rolling duplicate lines of auto-generated captions removed.
func ParseVTT(content string) ([]Cue, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	if !strings.HasPrefix(content, "WEBVTT") {
		return nil, fmt.Errorf("invalid VTT format: missing WEBVTT header")
	}

	var cues []Cue
	var prevLines []string
	blocks := strings.Split(content, "\n\n")
	for _, block := range blocks[1:] {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		// Optional cue identifier precedes the timing line.
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}

		timestamps := strings.SplitN(lines[timing], "-->", 2)
		start, err := parseVTTTimestamp(strings.TrimSpace(timestamps[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start timestamp: %w", err)
		}
		endField := strings.Fields(timestamps[1])
		if len(endField) == 0 {
			return nil, fmt.Errorf("invalid cue timing %q", lines[timing])
		}
		end, err := parseVTTTimestamp(endField[0])
		if err != nil {
			return nil, fmt.Errorf("invalid end timestamp: %w", err)
		}

		var textLines []string
		for _, line := range lines[timing+1:] {
			clean := strings.TrimSpace(html.UnescapeString(vttTag.ReplaceAllString(line, "")))
			if clean == "" {
				continue
			}
			textLines = append(textLines, clean)
		}
		fresh := dropRepeated(textLines, prevLines)
		prevLines = textLines
		if len(fresh) == 0 {
			continue
		}

		cues = append(cues, Cue{
			Start:    start,
			Duration: end - start,
			Text:     strings.Join(fresh, " "),
		})
	}
	return cues, nil
}

// dropRepeated removes lines already shown by the previous cue.
func dropRepeated(lines, prev []string) []string {
	if len(prev) == 0 {
		return lines
	}
	seen := make(map[string]struct{}, len(prev))
	for _, p := range prev {
		seen[p] = struct{}{}
	}
	out := lines[:0:0]
	for _, l := range lines {
		if _, ok := seen[l]; ok {
			continue
		}
		out = append(out, l)
	}
	return out
}

// parseVTTTimestamp parses HH:MM:SS.mmm or MM:SS.mmm into seconds.
func parseVTTTimestamp(timestamp string) (float64, error) {
	parts := strings.Split(timestamp, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format %q: expected [HH:]MM:SS.mmm", timestamp)
	}
	var hours int
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours: %w", err)
		}
		hours = h
		parts = parts[1:]
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}
	if !strings.Contains(parts[1], ".") {
		return 0, fmt.Errorf("invalid timestamp format %q: missing milliseconds", timestamp)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}
	return float64(hours*3600+minutes*60) + seconds, nil
}

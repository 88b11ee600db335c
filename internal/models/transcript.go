// Package models defines core data structures for transcripts, chunks, and retrieval results.
package models

import "time"

// TranscriptEntry is one timed caption line.
// Text carries a single trailing space so entries concatenate into readable prose;
// OriginalText is the cue text as the source delivered it.
type TranscriptEntry struct {
	Text             string  `json:"text"`
	OriginalText     string  `json:"original_text"`
	StartTime        float64 `json:"start_time"`
	Duration         float64 `json:"duration"`
	DetectedLanguage string  `json:"detected_language"`
}

// EndTime returns the time at which the entry stops being spoken.
func (e TranscriptEntry) EndTime() float64 {
	return e.StartTime + e.Duration
}

// Transcript is the full caption track of a video as fetched from a source.
type Transcript struct {
	VideoID          string            `json:"video_id"`
	DetectedLanguage string            `json:"detected_language"`
	Source           string            `json:"source,omitempty"`
	Entries          []TranscriptEntry `json:"entries"`
	FetchedAt        time.Time         `json:"fetched_at"`
}

// LanguageUnknown is the language recorded when neither the source nor detection yields one.
const LanguageUnknown = "unknown"

// VideoSummary describes a cached transcript without its entries.
type VideoSummary struct {
	VideoID          string    `json:"video_id"`
	DetectedLanguage string    `json:"detected_language"`
	Source           string    `json:"source,omitempty"`
	EntryCount       int       `json:"entry_count"`
	FetchedAt        time.Time `json:"fetched_at"`
}

package models

import "fmt"

// Chunk is a retrievable segment of a transcript: a contiguous run of entries
// plus the text that gets embedded.
type Chunk struct {
	Content          string            `json:"content"`
	StartTime        float64           `json:"start_time"`
	Duration         float64           `json:"duration"`
	Segments         []TranscriptEntry `json:"segments"`
	VideoID          string            `json:"video_id"`
	DetectedLanguage string            `json:"detected_language"`
}

// Validate checks the structural invariants of a chunk: non-empty segments,
// start time equal to the first segment, duration equal to the segment sum.
func (c *Chunk) Validate() error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("chunk has no segments")
	}
	if c.StartTime != c.Segments[0].StartTime {
		return fmt.Errorf("chunk start %.3f does not match first segment start %.3f", c.StartTime, c.Segments[0].StartTime)
	}
	var sum float64
	for _, s := range c.Segments {
		sum += s.Duration
	}
	if diff := c.Duration - sum; diff > 1e-6 || diff < -1e-6 {
		return fmt.Errorf("chunk duration %.3f does not match segment sum %.3f", c.Duration, sum)
	}
	return nil
}

// ScoredChunk is a chunk returned by similarity search with its score (higher is closer).
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

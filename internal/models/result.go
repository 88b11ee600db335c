package models

// IngestResult is the outcome of processing a video for retrieval.
// Success is false only when the transcript could not be obtained; storage
// problems are reported through Warning while the transcript is still returned.
type IngestResult struct {
	Success          bool              `json:"success"`
	VideoID          string            `json:"video_id"`
	Data             []TranscriptEntry `json:"data,omitempty"`
	DetectedLanguage string            `json:"detected_lang,omitempty"`
	ChunksProcessed  int               `json:"chunks_processed,omitempty"`
	Cached           bool              `json:"cached,omitempty"`
	Warning          string            `json:"warning,omitempty"`
	Error            string            `json:"error,omitempty"`
	Overview         []*Timestamp      `json:"overview,omitempty"`
}

// Timestamp is a clickable reference into the video with a short preview of what is said there.
type Timestamp struct {
	Time    string  `json:"time"`
	Seconds float64 `json:"seconds"`
	Text    string  `json:"text"`
	Score   float64 `json:"score,omitempty"`
}

// Moment is a keyword hit on a single transcript entry.
type Moment struct {
	VideoID string  `json:"video_id"`
	Index   int     `json:"index"`
	Time    string  `json:"time"`
	Seconds float64 `json:"seconds"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

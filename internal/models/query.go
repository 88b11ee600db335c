package models

import "fmt"

// QueryRequest asks for the transcript segments of a video most relevant to a question.
type QueryRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
	K       int    `json:"k,omitempty"`
}

// Validate ensures the request names a video and a question, and normalizes K.
// K <= 0 is left for the store to replace with its default; K is capped at maxK.
func (q *QueryRequest) Validate(maxK int) error {
	if q.VideoID == "" {
		return fmt.Errorf("video_id cannot be empty")
	}
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		q.K = 0
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// QueryResponse carries the retrieved context for a question.
type QueryResponse struct {
	Success    bool           `json:"success"`
	VideoID    string         `json:"video_id"`
	Query      string         `json:"query"`
	Chunks     []*ScoredChunk `json:"chunks"`
	Timestamps []*Timestamp   `json:"timestamps"`
	QueryTime  int64          `json:"query_time_ms"`
}

// Package cli provides output helpers for the ytrag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/vector"
	"github.com/hyperjump/ytrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseOutputFormat returns the format named by s. Unknown names are an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteIngestResult writes the outcome of ingesting a video.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if !res.Success {
		fmt.Fprintf(w, "Could not get transcript for %s: %s\n", res.VideoID, res.Error)
		return nil
	}
	state := "ingested"
	if res.Cached {
		state = "already ingested"
	}
	fmt.Fprintf(w, "\nVideo %s %s (%d entries, language %s", res.VideoID, state, len(res.Data), res.DetectedLanguage)
	if res.ChunksProcessed > 0 {
		fmt.Fprintf(w, ", %d chunks stored", res.ChunksProcessed)
	}
	fmt.Fprintln(w, ")")
	if res.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", res.Warning)
	}
	if len(res.Overview) > 0 {
		fmt.Fprintln(w, "\n--- Overview ---")
		writeTimestamps(w, res.Overview)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteQueryResults writes retrieved chunks for a question.
func WriteQueryResults(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d segments in %dms\n\n", len(resp.Chunks), resp.QueryTime)
	for i, sc := range resp.Chunks {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Start: %s | Duration: %.0fs\n",
			i+1, sc.Score, utils.FormatTimestamp(sc.Chunk.StartTime), sc.Chunk.Duration)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.CollapseWhitespace(sc.Chunk.Content), 300))
	}
	return nil
}

// WriteMoments writes keyword hits within a video.
func WriteMoments(w io.Writer, videoID, query string, moments []*models.Moment, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"video_id": videoID,
			"query":    query,
			"moments":  moments,
		})
	}
	if len(moments) == 0 {
		fmt.Fprintf(w, "No moments in %s mention %q\n", videoID, query)
		return nil
	}
	fmt.Fprintf(w, "\n%d moments in %s mention %q\n\n", len(moments), videoID, query)
	for _, m := range moments {
		fmt.Fprintf(w, "  [%s] %s\n", m.Time, utils.Truncate(m.Text, 120))
	}
	fmt.Fprintln(w)
	return nil
}

// Status is what the status command reports.
type Status struct {
	Transports     []vector.TransportStatus `json:"transports"`
	Videos         int64                    `json:"videos"`
	Entries        int64                    `json:"entries"`
	MomentEntries  uint64                   `json:"moment_entries"`
	DiskUsageBytes int64                    `json:"disk_usage_bytes"`
}

// WriteStatus writes backend reachability and local storage counts.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintln(w, "Vector index:")
	for _, t := range st.Transports {
		if t.Available {
			fmt.Fprintf(w, "  %-10s reachable\n", t.Name)
		} else {
			fmt.Fprintf(w, "  %-10s unreachable: %s\n", t.Name, t.Error)
		}
	}
	fmt.Fprintf(w, "Cached videos:   %d\n", st.Videos)
	fmt.Fprintf(w, "Cached entries:  %d\n", st.Entries)
	fmt.Fprintf(w, "Moment entries:  %d\n", st.MomentEntries)
	fmt.Fprintf(w, "Disk usage:      %s\n", FormatBytes(st.DiskUsageBytes))
	return nil
}

func writeTimestamps(w io.Writer, ts []*models.Timestamp) {
	for _, t := range ts {
		fmt.Fprintf(w, "  [%s] %s\n", t.Time, t.Text)
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

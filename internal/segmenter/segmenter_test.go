package segmenter

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/translate"
)

func entry(text string, start, dur float64) models.TranscriptEntry {
	return models.TranscriptEntry{Text: text, OriginalText: text, StartTime: start, Duration: dur, DetectedLanguage: "en"}
}

// sized returns n entries of size characters each, every entry 5s long.
func sized(n, size int) []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, n)
	for i := range out {
		out[i] = entry(strings.Repeat(string(rune('a'+i%26)), size), float64(i*5), 5)
	}
	return out
}

func concat(segs []models.TranscriptEntry) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

type countingTranslator struct {
	calls atomic.Int32
	err   error
}

func (c *countingTranslator) Translate(ctx context.Context, text string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "EN(" + text + ")", nil
}

func TestSegment_Empty(t *testing.T) {
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	if chunks := s.Segment(context.Background(), nil, "vid", "en", nil); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestSegment_ThreeEntriesOneChunk(t *testing.T) {
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), sized(3, 1000), "vid", "en", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.StartTime != 0 || c.Duration != 15 {
		t.Errorf("start=%v duration=%v", c.StartTime, c.Duration)
	}
	if len(c.Segments) != 3 {
		t.Errorf("expected 3 segments, got %d", len(c.Segments))
	}
	if c.VideoID != "vid" || c.DetectedLanguage != "en" {
		t.Errorf("metadata: %+v", c)
	}
}

func TestSegment_SixEntriesOverlap(t *testing.T) {
	entries := sized(6, 1000)
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), entries, "vid", "en", nil)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Segments) != 3 {
		t.Errorf("first chunk segments = %d", len(chunks[0].Segments))
	}
	second := chunks[1]
	if second.Segments[0] != entries[1] || second.Segments[1] != entries[2] {
		t.Error("second chunk must begin with entries 2 and 3")
	}
	if len(second.Segments) != 5 {
		t.Errorf("second chunk segments = %d, want 5", len(second.Segments))
	}
	if second.StartTime != entries[1].StartTime {
		t.Errorf("second start = %v, want %v", second.StartTime, entries[1].StartTime)
	}
	if second.Duration != 25 {
		t.Errorf("second duration = %v, want 25", second.Duration)
	}
}

func TestSegment_ThresholdBoundary(t *testing.T) {
	s := New(DefaultTargetSize, DefaultOverlapEntries)

	// 2499 characters never flush mid-stream; only the final flush emits.
	under := []models.TranscriptEntry{entry(strings.Repeat("x", 2000), 0, 1), entry(strings.Repeat("y", 499), 1, 1)}
	chunks := s.Segment(context.Background(), under, "vid", "en", nil)
	if len(chunks) != 1 || len(chunks[0].Segments) != 2 {
		t.Fatalf("under threshold: got %d chunks", len(chunks))
	}

	// The entry that crosses the threshold is the last segment of the flushed chunk.
	cross := []models.TranscriptEntry{
		entry(strings.Repeat("x", 2000), 0, 1),
		entry(strings.Repeat("y", 500), 1, 1),
		entry("tail ", 2, 1),
	}
	chunks = s.Segment(context.Background(), cross, "vid", "en", nil)
	if len(chunks) != 2 {
		t.Fatalf("crossing threshold: got %d chunks", len(chunks))
	}
	if last := chunks[0].Segments[len(chunks[0].Segments)-1]; last != cross[1] {
		t.Error("flush must happen immediately after the crossing entry")
	}
}

func TestSegment_CountsCharactersNotBytes(t *testing.T) {
	s := New(10, 0)
	// 9 runes, 27 bytes: stays below the target.
	chunks := s.Segment(context.Background(), []models.TranscriptEntry{entry("नमस्तेनमस", 0, 1), entry("z", 1, 1)}, "vid", "hi", nil)
	if len(chunks) != 1 || len(chunks[0].Segments) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
}

func TestSegment_Invariants(t *testing.T) {
	entries := make([]models.TranscriptEntry, 0, 200)
	for i := 0; i < 200; i++ {
		entries = append(entries, entry(strings.Repeat("w", 37+i%50)+" ", float64(i)*2.5, 2.5))
	}
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), entries, "vid", "en", nil)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			t.Errorf("chunk %d: %v", i, err)
		}
		if c.Content != concat(c.Segments) {
			t.Errorf("chunk %d content is not the concatenation of its segments", i)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1].Segments
		k := DefaultOverlapEntries
		if k > len(prev) {
			k = len(prev)
		}
		for j := 0; j < k; j++ {
			if c.Segments[j] != prev[len(prev)-k+j] {
				t.Errorf("chunk %d does not start with the tail of chunk %d", i, i-1)
			}
		}
	}
	last := chunks[len(chunks)-1].Segments
	if last[len(last)-1] != entries[len(entries)-1] {
		t.Error("last entry must be covered by the final chunk")
	}
}

func TestSegment_TranslatesOncePerChunk(t *testing.T) {
	tr := &countingTranslator{}
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), sized(6, 1000), "vid", "hi", tr)
	if int(tr.calls.Load()) != len(chunks) {
		t.Errorf("translator calls = %d, chunks = %d", tr.calls.Load(), len(chunks))
	}
	for _, c := range chunks {
		if !strings.HasPrefix(c.Content, "EN(") {
			t.Errorf("content not translated: %.20q", c.Content)
		}
	}
}

func TestSegment_SkipsTranslationForEnglish(t *testing.T) {
	tr := &countingTranslator{}
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	s.Segment(context.Background(), sized(6, 1000), "vid", "en", tr)
	s.Segment(context.Background(), sized(6, 1000), "vid", "unknown", tr)
	if tr.calls.Load() != 0 {
		t.Errorf("translator called %d times", tr.calls.Load())
	}
}

func TestSegment_TranslationFailureKeepsOriginal(t *testing.T) {
	tr := &countingTranslator{err: errors.New("service down")}
	s := New(DefaultTargetSize, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), sized(3, 1000), "vid", "hi", tr)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Content != concat(chunks[0].Segments) {
		t.Error("failed translation must fall back to the original text")
	}
}

func TestSegment_BreakerStopsAfterTimeout(t *testing.T) {
	inner := &countingTranslator{err: translate.ErrTimeout}
	br := translate.NewBreaker(inner, nil)
	s := New(1000, DefaultOverlapEntries)
	chunks := s.Segment(context.Background(), sized(10, 1000), "vid", "hi", br)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected one translation attempt, got %d", inner.calls.Load())
	}
	for _, c := range chunks {
		if c.Content != concat(c.Segments) {
			t.Error("chunks after a timeout must carry untranslated text")
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(0, -1)
	if s.targetSize != DefaultTargetSize || s.overlapEntries != DefaultOverlapEntries {
		t.Errorf("got target=%d overlap=%d", s.targetSize, s.overlapEntries)
	}
}

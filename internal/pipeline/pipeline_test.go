package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/ytrag/internal/collection"
	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/embedding"
	"github.com/hyperjump/ytrag/internal/keyword"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/segmenter"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/internal/transcript"
	"github.com/hyperjump/ytrag/internal/vector"
)

const testVideo = "dQw4w9WgXcQ"

type fakeFetcher struct {
	calls atomic.Int32
	t     *models.Transcript
	err   error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, videoID string, languages []string) (*models.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	t := *f.t
	t.VideoID = videoID
	return &t, nil
}

type upsertFailIndex struct {
	*vector.MemoryIndex
}

func (upsertFailIndex) Upsert(context.Context, string, []vector.Point) error {
	return vector.ErrUnavailable
}

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string) (func(), error) {
	return nil, errors.New("redis down")
}
func (brokenLocker) Close() error { return nil }

type upperTranslator struct{ calls atomic.Int32 }

func (u *upperTranslator) Translate(ctx context.Context, text string) (string, error) {
	u.calls.Add(1)
	return strings.ToUpper(text), nil
}

func sampleTranscript(language string, topics ...string) *models.Transcript {
	var entries []models.TranscriptEntry
	for i, topic := range topics {
		text := strings.Repeat(topic+" ", 1000/(len(topic)+1))
		entries = append(entries, models.TranscriptEntry{
			Text:             text,
			OriginalText:     strings.TrimSpace(text),
			StartTime:        float64(i * 5),
			Duration:         5,
			DetectedLanguage: language,
		})
	}
	return &models.Transcript{DetectedLanguage: language, Source: "fake", Entries: entries}
}

func newTestPipeline(t *testing.T, index vector.Index, fetcher transcript.Fetcher, opts ...Option) *Pipeline {
	t.Helper()
	store := collection.NewStore(index, embedding.NewMockEmbedder(64))
	seg := segmenter.New(2500, 2)
	return New(store, seg, fetcher, opts...)
}

func TestPipeline_IngestThenCached(t *testing.T) {
	idx := vector.NewMemoryIndex()
	fetcher := &fakeFetcher{t: sampleTranscript("en", "rockets", "engines", "orbits", "fuel", "landing", "gravity")}
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ytrag.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer db.Close()
	p := newTestPipeline(t, idx, fetcher, WithCache(db), WithLocker(nil))
	ctx := context.Background()

	first, err := p.Ingest(ctx, testVideo, []string{"en"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !first.Success || first.Cached {
		t.Fatalf("first ingest = %+v", first)
	}
	if first.ChunksProcessed != 2 {
		t.Errorf("ChunksProcessed = %d, want 2", first.ChunksProcessed)
	}
	if len(first.Data) != 6 {
		t.Errorf("Data has %d entries, want 6", len(first.Data))
	}
	if len(first.Overview) != 2 {
		t.Errorf("Overview has %d timestamps, want 2", len(first.Overview))
	}

	second, err := p.Ingest(ctx, "https://youtu.be/"+testVideo, []string{"en"})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !second.Success || !second.Cached {
		t.Fatalf("second ingest = %+v", second)
	}
	if second.ChunksProcessed != 0 {
		t.Errorf("cached ChunksProcessed = %d", second.ChunksProcessed)
	}
	if len(second.Data) != 6 {
		t.Errorf("cached Data has %d entries", len(second.Data))
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	n, _ := idx.Count(ctx, testVideo)
	if n != 2 {
		t.Errorf("points = %d after two ingests, want 2", n)
	}
	for i := range first.Overview {
		if first.Overview[i].Seconds != second.Overview[i].Seconds {
			t.Errorf("overview %d differs between ingests", i)
		}
	}
}

func TestPipeline_IngestCachedWithoutTranscriptCacheRefetches(t *testing.T) {
	idx := vector.NewMemoryIndex()
	fetcher := &fakeFetcher{t: sampleTranscript("en", "alpha", "beta")}
	p := newTestPipeline(t, idx, fetcher)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, testVideo, nil); err != nil {
		t.Fatal(err)
	}
	res, err := p.Ingest(ctx, testVideo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached || len(res.Data) != 2 {
		t.Errorf("result = %+v", res)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetcher called %d times, want 2", got)
	}
	n, _ := idx.Count(ctx, testVideo)
	if n != 1 {
		t.Errorf("points = %d, want 1", n)
	}
}

func TestPipeline_IngestFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: &transcript.Error{Kind: transcript.KindTranscriptsDisabled, VideoID: testVideo, Source: "fake"}}
	p := newTestPipeline(t, vector.NewMemoryIndex(), fetcher)

	res, err := p.Ingest(context.Background(), testVideo, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.Error, "disabled") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestPipeline_IngestInvalidVideo(t *testing.T) {
	p := newTestPipeline(t, vector.NewMemoryIndex(), &fakeFetcher{})
	for _, ref := range []string{"", "   ", "https://example.com/watch?v=dQw4w9WgXcQ"} {
		if _, err := p.Ingest(context.Background(), ref, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Ingest(%q) error = %v, want ErrInvalidInput", ref, err)
		}
	}
}

func TestPipeline_IngestStorageFailureWarns(t *testing.T) {
	idx := upsertFailIndex{vector.NewMemoryIndex()}
	fetcher := &fakeFetcher{t: sampleTranscript("en", "one", "two", "three")}
	p := newTestPipeline(t, idx, fetcher)

	res, err := p.Ingest(context.Background(), testVideo, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Success {
		t.Fatal("transcript should still be returned")
	}
	if res.Warning != StorageWarning {
		t.Errorf("Warning = %q", res.Warning)
	}
	if len(res.Data) != 3 {
		t.Errorf("Data has %d entries", len(res.Data))
	}
	if len(res.Overview) != 0 {
		t.Errorf("Overview = %v, want empty", res.Overview)
	}
}

func TestPipeline_IngestLockFailureContinues(t *testing.T) {
	fetcher := &fakeFetcher{t: sampleTranscript("en", "solo")}
	p := newTestPipeline(t, vector.NewMemoryIndex(), fetcher, WithLocker(brokenLocker{}))

	res, err := p.Ingest(context.Background(), testVideo, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Success || res.ChunksProcessed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestPipeline_IngestTranslatesForeignChunks(t *testing.T) {
	idx := vector.NewMemoryIndex()
	fetcher := &fakeFetcher{t: sampleTranscript("es", "hola", "mundo")}
	tr := &upperTranslator{}
	store := collection.NewStore(idx, embedding.NewMockEmbedder(64))
	p := New(store, segmenter.New(2500, 2, segmenter.WithTargetLanguage("en")), fetcher, WithTranslator(tr))

	if _, err := p.Ingest(context.Background(), testVideo, nil); err != nil {
		t.Fatal(err)
	}
	if tr.calls.Load() != 1 {
		t.Errorf("translator called %d times, want 1", tr.calls.Load())
	}
	hits, err := p.Query(context.Background(), testVideo, "hola", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || !strings.Contains(hits[0].Chunk.Content, "HOLA") {
		t.Errorf("hits = %+v", hits)
	}
}

func TestPipeline_Query(t *testing.T) {
	fetcher := &fakeFetcher{t: sampleTranscript("en", "rockets", "engines", "orbits", "fuel", "landing", "gravity")}
	p := newTestPipeline(t, vector.NewMemoryIndex(), fetcher, WithRetrieval(config.RetrievalConfig{DefaultK: 1, MaxK: 1}))
	ctx := context.Background()
	if _, err := p.Ingest(ctx, testVideo, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		question string
		k        int
		want     int
		wantErr  bool
	}{
		{"empty question", "  ", 0, 0, true},
		{"default k", "rockets", 0, 1, false},
		{"capped k", "rockets", 10, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := p.Query(ctx, testVideo, tt.question, tt.k)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != tt.want {
				t.Errorf("got %d hits, want %d", len(hits), tt.want)
			}
		})
	}
}

func TestPipeline_QueryUnknownVideo(t *testing.T) {
	p := newTestPipeline(t, vector.NewMemoryIndex(), &fakeFetcher{})
	hits, err := p.Query(context.Background(), testVideo, "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want empty slice", hits)
	}
}

func TestPipeline_Moments(t *testing.T) {
	mi, err := keyword.NewMemBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer mi.Close()
	tr := &models.Transcript{DetectedLanguage: "en", Entries: []models.TranscriptEntry{
		{Text: "welcome to the show ", StartTime: 0, Duration: 3},
		{Text: "today we talk about rockets ", StartTime: 3, Duration: 4},
		{Text: "and later about submarines ", StartTime: 65, Duration: 4},
	}}
	p := newTestPipeline(t, vector.NewMemoryIndex(), &fakeFetcher{t: tr}, WithMomentIndex(mi))
	ctx := context.Background()
	if _, err := p.Ingest(ctx, testVideo, nil); err != nil {
		t.Fatal(err)
	}

	moments, err := p.Moments(ctx, testVideo, "submarines", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(moments) != 1 {
		t.Fatalf("got %d moments, want 1", len(moments))
	}
	if moments[0].Time != "01:05" || moments[0].Index != 2 {
		t.Errorf("moment = %+v", moments[0])
	}

	if _, err := p.Moments(ctx, testVideo, "", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty query error = %v", err)
	}
}

func TestPipeline_MomentsWithoutIndex(t *testing.T) {
	p := newTestPipeline(t, vector.NewMemoryIndex(), &fakeFetcher{})
	moments, err := p.Moments(context.Background(), testVideo, "rockets", 5)
	if err != nil {
		t.Fatal(err)
	}
	if moments == nil || len(moments) != 0 {
		t.Errorf("moments = %v", moments)
	}
}

func TestTimestamps(t *testing.T) {
	long := strings.Repeat("word ", 50)
	got := Timestamps([]*models.ScoredChunk{
		{Chunk: &models.Chunk{Content: "short  text\n", StartTime: 75}, Score: 0.9},
		nil,
		{Chunk: &models.Chunk{Content: long, StartTime: 3700}, Score: 0.5},
	})
	if len(got) != 2 {
		t.Fatalf("got %d timestamps", len(got))
	}
	if got[0].Time != "01:15" || got[0].Text != "short text" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Time != "01:01:40" || !strings.HasSuffix(got[1].Text, "...") || len(got[1].Text) != previewLength+3 {
		t.Errorf("second = %+v", got[1])
	}
}

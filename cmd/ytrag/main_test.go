package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/config"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/server"
	"github.com/hyperjump/ytrag/internal/translate"
)

const captionVTT = `WEBVTT

00:00:00.000 --> 00:00:02.000
Welcome to the channel everybody

00:00:02.000 --> 00:00:05.000
today we are building a search engine for videos
`

const testVideoID = "dQw4w9WgXcQ"

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after positionals", []string{testVideoID, "what", "is", "it", "-k", "3"}, []string{"-k", "3", testVideoID, "what", "is", "it"}},
		{"flags first", []string{"-k", "3", testVideoID, "q"}, []string{"-k", "3", testVideoID, "q"}},
		{"positionals only", []string{testVideoID, "q"}, []string{testVideoID, "q"}},
		{"empty", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := argsReorder(tt.args); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"rocket"}, "rocket"},
		{[]string{"rocket", "engine"}, "rocket engine"},
		{[]string{"rocket engine"}, "rocket engine"},
		{[]string{" ", " "}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := joinArgs(tt.args); got != tt.want {
			t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestLoadConfig_explicitPathWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("vector:\n  url: http://file:6333\nembedding:\n  provider: mock\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QDRANT_URL", "http://env:6333")

	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Vector.URL != "http://env:6333" {
		t.Errorf("Vector.URL = %q, want env override", cfg.Vector.URL)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Segmenter.TargetSize != 2500 {
		t.Errorf("defaults not applied: %+v", cfg.Segmenter)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	disabled := false
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "ytrag.db")
	cfg.Storage.KeywordIndexPath = filepath.Join(dir, "moments.bleve")
	cfg.Vector.Driver = "memory"
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 32
	cfg.Translation.Enabled = &disabled
	cfg.Transcript.Sources = []string{"files"}
	cfg.Transcript.CaptionsDir = filepath.Join(dir, "captions")
	config.ApplyDefaults(cfg)
	if err := os.MkdirAll(cfg.Transcript.CaptionsDir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestCaptionHandler_ingestsDroppedFile(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	path := filepath.Join(cfg.Transcript.CaptionsDir, testVideoID+".en.vtt")
	if err := os.WriteFile(path, []byte(captionVTT), 0600); err != nil {
		t.Fatal(err)
	}
	captionHandler(ctx, components.Pipeline, cfg.Transcript.Languages, zap.NewNop())(path)

	n, err := components.Store.Count(ctx, testVideoID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("points = %d, want 1", n)
	}
	cached, err := components.Storage.GetTranscript(ctx, testVideoID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached.Entries) != 2 || cached.DetectedLanguage != "en" {
		t.Errorf("cached transcript = %+v", cached)
	}

	// A file whose name carries no video id is ignored.
	captionHandler(ctx, components.Pipeline, nil, zap.NewNop())(filepath.Join(cfg.Transcript.CaptionsDir, "notes.vtt"))
}

func TestViaHTTP(t *testing.T) {
	cfg := testConfig(t)
	components, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	if err := os.WriteFile(filepath.Join(cfg.Transcript.CaptionsDir, testVideoID+".vtt"), []byte(captionVTT), 0600); err != nil {
		t.Fatal(err)
	}
	srv := server.NewServer(components.Pipeline, components.Storage, components.MomentIndex, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := ingestViaHTTP(ts.URL, "https://www.youtube.com/watch?v="+testVideoID, []string{"en"}, "key")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ChunksProcessed != 1 || len(res.Data) != 2 {
		t.Errorf("ingest result = %+v", res)
	}

	resp, err := queryViaHTTP(ts.URL, &models.QueryRequest{VideoID: testVideoID, Query: "search engine"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Chunks) != 1 || len(resp.Timestamps) != 1 || resp.Timestamps[0].Time != "00:00" {
		t.Errorf("query response = %+v", resp)
	}

	if _, err := queryViaHTTP(ts.URL, &models.QueryRequest{VideoID: testVideoID}, ""); err == nil {
		t.Error("expected error for empty query")
	}

	st, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if st.Videos != 1 || st.Entries != 2 || len(st.Transports) != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestBuildFetcher_unknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transcript.Sources = []string{"files", "carrier-pigeon"}
	if _, err := buildFetcher(cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestBuildTranslator(t *testing.T) {
	enabled := true
	tests := []struct {
		name    string
		mode    string
		enabled *bool
		wantNil bool
		wantErr bool
	}{
		{"disabled", "process", new(bool), true, false},
		{"process", "process", &enabled, false, false},
		{"inline", "inline", nil, false, false},
		{"unknown", "carrier-pigeon", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Translation.Mode = tt.mode
			cfg.Translation.Enabled = tt.enabled
			config.ApplyDefaults(cfg)
			tr, err := buildTranslator(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (tr == nil) != tt.wantNil {
				t.Errorf("translator = %v, wantNil %v", tr, tt.wantNil)
			}
			if tt.mode == "inline" {
				if _, ok := tr.(*translate.Timed); !ok {
					t.Errorf("inline translator is %T", tr)
				}
			}
		})
	}
}

package vector

import (
	"context"
	"testing"

	"github.com/hyperjump/ytrag/internal/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		cfg      config.VectorConfig
		wantType string
		wantErr  bool
	}{
		{"default is qdrant with fallback", config.VectorConfig{URL: "http://localhost:6333"}, "fallback", false},
		{"rest only", config.VectorConfig{Driver: DriverQdrantREST, URL: "http://localhost:6333"}, "rest", false},
		{"memory", config.VectorConfig{Driver: DriverMemory}, DriverMemory, false},
		{"pgvector without url", config.VectorConfig{Driver: DriverPGVector}, "", true},
		{"qdrant bad url", config.VectorConfig{Driver: DriverQdrant, URL: "://nope"}, "", true},
		{"unknown", config.VectorConfig{Driver: "faiss"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := New(ctx, &tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer idx.Close()
			if idx.Name() != tt.wantType {
				t.Errorf("Name = %s, want %s", idx.Name(), tt.wantType)
			}
		})
	}
}

func TestGRPCTarget(t *testing.T) {
	host, tls, err := grpcTarget("https://qdrant.example.com:6333")
	if err != nil || host != "qdrant.example.com" || !tls {
		t.Errorf("got %q %v %v", host, tls, err)
	}
	host, tls, err = grpcTarget("http://localhost:6333")
	if err != nil || host != "localhost" || tls {
		t.Errorf("got %q %v %v", host, tls, err)
	}
}

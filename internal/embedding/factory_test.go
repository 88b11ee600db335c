package embedding

import (
	"testing"

	"github.com/hyperjump/ytrag/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
		check   func(t *testing.T, e Embedder)
	}{
		{
			name: "mock with cache",
			cfg:  config.EmbeddingConfig{Provider: ProviderMock, Dimensions: 32, CacheSize: 10},
			check: func(t *testing.T, e Embedder) {
				if _, ok := e.(*CachedEmbedder); !ok {
					t.Errorf("got %T, want *CachedEmbedder", e)
				}
				if e.Dimensions() != 32 {
					t.Errorf("Dimensions = %d", e.Dimensions())
				}
			},
		},
		{
			name: "openai default",
			cfg:  config.EmbeddingConfig{APIKey: "k"},
			check: func(t *testing.T, e Embedder) {
				oe, ok := e.(*OpenAIEmbedder)
				if !ok {
					t.Fatalf("got %T, want *OpenAIEmbedder", e)
				}
				if oe.model != DefaultModel || oe.baseURL != DefaultBaseURL || oe.Dimensions() != DefaultDimensions {
					t.Errorf("defaults not applied: %+v", oe)
				}
			},
		},
		{
			name:    "unknown provider",
			cfg:     config.EmbeddingConfig{Provider: "word2vec"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(&tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

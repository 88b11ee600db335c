package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/config"
)

// Embedding providers accepted in config.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// New builds the embedder selected by cfg.Provider, wrapped in a cache when cfg.CacheSize > 0.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "", ProviderOpenAI:
		base = NewOpenAIEmbedder(cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithModel(cfg.Model),
			WithDimensions(cfg.Dimensions),
			WithLogger(logger),
		)
	case ProviderONNX:
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			LibraryPath:   cfg.LibraryPath,
			Dimensions:    cfg.Dimensions,
			MaxTokens:     cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case ProviderMock:
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}

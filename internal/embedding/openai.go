package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/pkg/utils"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// DefaultModel is the default remote embedding model.
	DefaultModel = "text-embedding-004"
	// DefaultDimensions is the vector size of DefaultModel.
	DefaultDimensions = 768
)

// ErrMissingAPIKey is returned when neither the config nor the request context supplies a key.
var ErrMissingAPIKey = errors.New("embedding API key is not configured")

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. A key supplied with
// WithAPIKey on the request context takes precedence over the configured one.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	logger     *zap.Logger

	// configured is built once for apiKey; per-request keys get a throwaway client.
	configured *openai.Client
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if u != "" {
			e.baseURL = u
		}
	}
}

// WithModel overrides the embedding model.
func WithModel(m string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if m != "" {
			e.model = m
		}
	}
}

// WithDimensions sets the expected vector size.
func WithDimensions(d int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if d > 0 {
			e.dimensions = d
		}
	}
}

// WithBatchSize caps how many inputs are sent per request.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = utils.OrNop(l) }
}

// NewOpenAIEmbedder creates a remote embedder. apiKey may be empty when every call carries one in its context.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		batchSize:  100,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if apiKey != "" {
		e.configured = e.newClient(apiKey)
	}
	return e
}

func (e *OpenAIEmbedder) newClient(key string) *openai.Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = e.baseURL
	return openai.NewClientWithConfig(cfg)
}

func (e *OpenAIEmbedder) client(ctx context.Context) (*openai.Client, error) {
	if k, ok := APIKeyFromContext(ctx); ok && k != e.apiKey {
		return e.newClient(k), nil
	}
	if e.configured == nil {
		return nil, ErrMissingAPIKey
	}
	return e.configured, nil
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	c, err := e.client(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), end-start)
		}
		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
		e.logger.Debug("embedded batch", zap.Int("count", end-start), zap.String("model", e.model))
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

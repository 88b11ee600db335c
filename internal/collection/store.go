// Package collection owns one named vector collection per video: creating it, filling it
// with embedded chunks and answering similarity queries against it.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/embedding"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/pointid"
	"github.com/hyperjump/ytrag/internal/vector"
	"github.com/hyperjump/ytrag/pkg/utils"
)

// DefaultK is the number of results SimilaritySearch returns when k <= 0.
const DefaultK = 4

const payloadIndexKey = "chunk_index"

// Store manages per-video collections on top of a vector index and an embedder.
// It holds no per-collection state; concurrent calls for the same name are safe
// as far as the index is.
type Store struct {
	index    vector.Index
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = utils.OrNop(l) }
}

// NewStore creates a store. It does not contact the index.
func NewStore(index vector.Index, embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{index: index, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCollection makes sure a cosine collection of vectorSize exists. With recreate,
// an existing collection is dropped first. A failed existence check is treated as absent
// and a concurrent creation by someone else counts as success.
func (s *Store) EnsureCollection(ctx context.Context, name string, vectorSize int, recreate bool) error {
	exists, err := s.index.Exists(ctx, name)
	if err != nil {
		s.logger.Warn("collection existence check failed, assuming absent",
			zap.String("collection", name), zap.Error(err))
		exists = false
	}
	if exists && !recreate {
		return nil
	}
	if exists && recreate {
		if err := s.index.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", name, err)
		}
		s.logger.Info("collection dropped for recreate", zap.String("collection", name))
	}
	if err := s.index.Create(ctx, name, vectorSize); err != nil {
		if errors.Is(err, vector.ErrCollectionExists) {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	s.logger.Info("collection created", zap.String("collection", name), zap.Int("dimensions", vectorSize))
	return nil
}

// Insert embeds every chunk's content and upserts the chunks into the named collection,
// creating it when absent. Point IDs derive from the collection name and chunk position.
func (s *Store) Insert(ctx context.Context, name string, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) || len(vectors[0]) == 0 {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err := s.EnsureCollection(ctx, name, len(vectors[0]), false); err != nil {
		return err
	}

	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		payload, err := chunkPayload(c)
		if err != nil {
			return err
		}
		payload[payloadIndexKey] = i
		points[i] = vector.Point{ID: pointid.ChunkID(name, i), Vector: vectors[i], Payload: payload}
	}
	if err := s.index.Upsert(ctx, name, points); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", name, err)
	}
	s.logger.Info("chunks inserted", zap.String("collection", name), zap.Int("count", len(points)))
	return nil
}

// Count returns the number of points in the collection; a missing collection has zero.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	n, err := s.index.Count(ctx, name)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", name, err)
	}
	return n, nil
}

// SimilaritySearch returns up to k chunks closest to query, best first. It never fails:
// a missing collection or any backend error yields an empty result.
func (s *Store) SimilaritySearch(ctx context.Context, name, query string, k int) []*models.ScoredChunk {
	if k <= 0 {
		k = DefaultK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed", zap.String("collection", name), zap.Error(err))
		return []*models.ScoredChunk{}
	}
	hits, err := s.index.Search(ctx, name, vec, k)
	if err != nil {
		if !errors.Is(err, vector.ErrCollectionNotFound) {
			s.logger.Warn("similarity search failed", zap.String("collection", name), zap.Error(err))
		}
		return []*models.ScoredChunk{}
	}
	out := make([]*models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		c, err := chunkFromPayload(h.Payload)
		if err != nil {
			s.logger.Debug("skipping point with unreadable payload", zap.String("id", h.ID), zap.Error(err))
			continue
		}
		out = append(out, &models.ScoredChunk{Chunk: c, Score: h.Score})
	}
	return out
}

// Diagnose checks each transport of the index and logs the outcome. It never fails.
func (s *Store) Diagnose(ctx context.Context) []vector.TransportStatus {
	var statuses []vector.TransportStatus
	if t, ok := s.index.(interface {
		Transports(context.Context) []vector.TransportStatus
	}); ok {
		statuses = t.Transports(ctx)
	} else {
		st := vector.TransportStatus{Name: s.index.Name(), Available: true}
		if err := s.index.Ping(ctx); err != nil {
			st.Available = false
			st.Error = err.Error()
		}
		statuses = []vector.TransportStatus{st}
	}
	for _, st := range statuses {
		if st.Available {
			s.logger.Info("vector transport reachable", zap.String("transport", st.Name))
		} else {
			s.logger.Warn("vector transport unreachable", zap.String("transport", st.Name), zap.String("error", st.Error))
		}
	}
	return statuses
}

func chunkPayload(c *models.Chunk) (map[string]any, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to encode chunk: %w", err)
	}
	return m, nil
}

func chunkFromPayload(p map[string]any) (*models.Chunk, error) {
	if p == nil {
		return nil, errors.New("empty payload")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var c models.Chunk
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Package vector provides named vector collections with cosine similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when an operation targets a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned by Create when the collection is already present.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrUnavailable marks transport-level failures (connection refused, timeouts, 5xx).
	// Callers may retry the same operation on another transport.
	ErrUnavailable = errors.New("vector database unavailable")
)

// Point is a vector with its payload, addressed by a UUID string.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a search result.
type Hit struct {
	ID      string
	Score   float64 // cosine similarity
	Payload map[string]any
}

// Index manages named collections of points.
type Index interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string, dimensions int) error
	Delete(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error)
	Count(ctx context.Context, collection string) (int, error)
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

package vector

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/pkg/utils"
)

// FallbackIndex prefers a structured primary transport and retries an operation on the
// secondary transport when the primary fails with ErrUnavailable. The primary is
// constructed lazily; a failed construction is retried on the next operation.
type FallbackIndex struct {
	connect   func() (Index, error)
	secondary Index
	logger    *zap.Logger

	mu      sync.Mutex
	primary Index
}

// FallbackOption configures a FallbackIndex.
type FallbackOption func(*FallbackIndex)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *zap.Logger) FallbackOption {
	return func(f *FallbackIndex) { f.logger = utils.OrNop(l) }
}

// NewFallbackIndex creates an index that uses connect() for the primary transport and secondary as fallback.
func NewFallbackIndex(connect func() (Index, error), secondary Index, opts ...FallbackOption) *FallbackIndex {
	f := &FallbackIndex{connect: connect, secondary: secondary, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the transport name.
func (f *FallbackIndex) Name() string { return "fallback" }

func (f *FallbackIndex) primaryIndex() (Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primary != nil {
		return f.primary, nil
	}
	p, err := f.connect()
	if err != nil {
		return nil, err
	}
	f.primary = p
	return p, nil
}

// run executes op on the primary and, on a transport failure, once more on the secondary.
func run[T any](f *FallbackIndex, opName string, op func(Index) (T, error)) (T, error) {
	p, err := f.primaryIndex()
	if err == nil {
		res, opErr := op(p)
		if opErr == nil || !errors.Is(opErr, ErrUnavailable) {
			return res, opErr
		}
		err = opErr
	}
	f.logger.Warn("primary vector transport failed, using fallback",
		zap.String("op", opName),
		zap.String("fallback", f.secondary.Name()),
		zap.Error(err))
	return op(f.secondary)
}

// Exists reports whether the collection exists.
func (f *FallbackIndex) Exists(ctx context.Context, collection string) (bool, error) {
	return run(f, "exists", func(i Index) (bool, error) { return i.Exists(ctx, collection) })
}

// Create creates the collection.
func (f *FallbackIndex) Create(ctx context.Context, collection string, dimensions int) error {
	_, err := run(f, "create", func(i Index) (struct{}, error) {
		return struct{}{}, i.Create(ctx, collection, dimensions)
	})
	return err
}

// Delete drops the collection.
func (f *FallbackIndex) Delete(ctx context.Context, collection string) error {
	_, err := run(f, "delete", func(i Index) (struct{}, error) {
		return struct{}{}, i.Delete(ctx, collection)
	})
	return err
}

// Upsert writes points.
func (f *FallbackIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	_, err := run(f, "upsert", func(i Index) (struct{}, error) {
		return struct{}{}, i.Upsert(ctx, collection, points)
	})
	return err
}

// Search returns the k nearest points.
func (f *FallbackIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	return run(f, "search", func(i Index) ([]Hit, error) { return i.Search(ctx, collection, query, k) })
}

// Count returns the number of points.
func (f *FallbackIndex) Count(ctx context.Context, collection string) (int, error) {
	return run(f, "count", func(i Index) (int, error) { return i.Count(ctx, collection) })
}

// Ping succeeds when either transport answers.
func (f *FallbackIndex) Ping(ctx context.Context) error {
	_, err := run(f, "ping", func(i Index) (struct{}, error) { return struct{}{}, i.Ping(ctx) })
	return err
}

// TransportStatus describes one transport's reachability.
type TransportStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Transports pings each transport independently.
func (f *FallbackIndex) Transports(ctx context.Context) []TransportStatus {
	out := make([]TransportStatus, 0, 2)
	p, err := f.primaryIndex()
	if err == nil {
		out = append(out, pingStatus(ctx, p))
	} else {
		out = append(out, TransportStatus{Name: "grpc", Error: err.Error()})
	}
	return append(out, pingStatus(ctx, f.secondary))
}

func pingStatus(ctx context.Context, i Index) TransportStatus {
	st := TransportStatus{Name: i.Name(), Available: true}
	if err := i.Ping(ctx); err != nil {
		st.Available = false
		st.Error = err.Error()
	}
	return st
}

// Close closes both transports.
func (f *FallbackIndex) Close() error {
	f.mu.Lock()
	p := f.primary
	f.primary = nil
	f.mu.Unlock()
	var errs []error
	if p != nil {
		errs = append(errs, p.Close())
	}
	errs = append(errs, f.secondary.Close())
	return errors.Join(errs...)
}

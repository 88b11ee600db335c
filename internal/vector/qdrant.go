package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantIndex is the structured gRPC client for Qdrant.
type QdrantIndex struct {
	client *qdrant.Client
}

// QdrantOptions configures NewQdrantIndex.
type QdrantOptions struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// NewQdrantIndex creates a gRPC client. The connection is established lazily by the first call.
func NewQdrantIndex(opts QdrantOptions) (*QdrantIndex, error) {
	if opts.Port == 0 {
		opts.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create qdrant client: %v", ErrUnavailable, err)
	}
	return &QdrantIndex{client: client}, nil
}

// Name returns the transport name.
func (q *QdrantIndex) Name() string { return "grpc" }

// mapGRPCError translates gRPC status codes into the package's sentinel errors.
func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		var withStatus interface{ GRPCStatus() *status.Status }
		if errors.As(err, &withStatus) {
			st, ok = withStatus.GRPCStatus(), true
		}
	}
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.Unknown, codes.DeadlineExceeded, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case codes.AlreadyExists:
		return ErrCollectionExists
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	}
	return err
}

// Exists reports whether the collection exists.
func (q *QdrantIndex) Exists(ctx context.Context, collection string) (bool, error) {
	ok, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, mapGRPCError(err)
	}
	return ok, nil
}

// Create creates a cosine-distance collection.
func (q *QdrantIndex) Create(ctx context.Context, collection string, dimensions int) error {
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return mapGRPCError(err)
}

// Delete drops the collection.
func (q *QdrantIndex) Delete(ctx context.Context, collection string) error {
	err := mapGRPCError(q.client.DeleteCollection(ctx, collection))
	if errors.Is(err, ErrCollectionNotFound) {
		return nil
	}
	return err
}

// Upsert writes points and waits for them to be applied.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for point %s: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	return mapGRPCError(err)
}

// Search returns the k nearest points with payloads.
func (q *QdrantIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, mapGRPCError(err)
	}
	hits := make([]Hit, len(res))
	for i, p := range res {
		hits[i] = Hit{
			ID:      pointID(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: fromValueMap(p.GetPayload()),
		}
	}
	return hits, nil
}

// Count returns the exact number of points.
func (q *QdrantIndex) Count(ctx context.Context, collection string) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, mapGRPCError(err)
	}
	return int(n), nil
}

// Ping runs the server health check.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	_, err := q.client.HealthCheck(ctx)
	return mapGRPCError(err)
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func fromValueMap(m map[string]*qdrant.Value) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return fromValueMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		vals := kind.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, item := range vals {
			out[i] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}

package vector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/config"
)

// Supported vector drivers.
const (
	// DriverQdrant uses the gRPC client with REST fallback.
	DriverQdrant = "qdrant"
	// DriverQdrantREST uses only the REST API.
	DriverQdrantREST = "qdrant-rest"
	// DriverPGVector stores collections in Postgres with the pgvector extension.
	DriverPGVector = "pgvector"
	// DriverMemory keeps collections in process memory.
	DriverMemory = "memory"
)

// New creates the index selected by cfg.Driver.
func New(ctx context.Context, cfg *config.VectorConfig, logger *zap.Logger) (Index, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Driver {
	case DriverQdrant, "":
		rest := NewRESTIndex(cfg.URL, cfg.APIKey, timeout)
		host, useTLS, err := grpcTarget(cfg.URL)
		if err != nil {
			return nil, err
		}
		connect := func() (Index, error) {
			return NewQdrantIndex(QdrantOptions{
				Host:   host,
				Port:   cfg.GRPCPort,
				APIKey: cfg.APIKey,
				UseTLS: useTLS || cfg.UseTLS,
			})
		}
		return NewFallbackIndex(connect, rest, WithLogger(logger)), nil
	case DriverQdrantREST:
		return NewRESTIndex(cfg.URL, cfg.APIKey, timeout), nil
	case DriverPGVector:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("vector.postgres_url is required for the %s driver", DriverPGVector)
		}
		return NewPGVectorIndex(ctx, cfg.PostgresURL)
	case DriverMemory:
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown vector driver: %s (supported: qdrant, qdrant-rest, pgvector, memory)", cfg.Driver)
	}
}

// grpcTarget extracts the gRPC host from the REST URL.
func grpcTarget(rawURL string) (string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("invalid vector url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", false, fmt.Errorf("invalid vector url %q: missing host", rawURL)
	}
	return host, u.Scheme == "https", nil
}

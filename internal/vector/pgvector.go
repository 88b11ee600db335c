package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const pgTablePrefix = "rag_"

// PGVectorIndex stores each collection as a Postgres table with a pgvector column.
type PGVectorIndex struct {
	db *sql.DB
}

// NewPGVectorIndex opens dsn with lib/pq and enables the vector extension.
func NewPGVectorIndex(ctx context.Context, dsn string) (*PGVectorIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable pgvector: %w", mapPQError(err))
	}
	return &PGVectorIndex{db: db}, nil
}

// Name returns the transport name.
func (p *PGVectorIndex) Name() string { return DriverPGVector }

func tableName(collection string) string {
	return pq.QuoteIdentifier(pgTablePrefix + collection)
}

func mapPQError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P07":
			return ErrCollectionExists
		case "42P01":
			return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// Exists reports whether the collection table exists.
func (p *PGVectorIndex) Exists(ctx context.Context, collection string) (bool, error) {
	var ok bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		pgTablePrefix+collection).Scan(&ok)
	if err != nil {
		return false, mapPQError(err)
	}
	return ok, nil
}

// Create creates the collection table.
func (p *PGVectorIndex) Create(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	q := fmt.Sprintf(`CREATE TABLE %s (
		id UUID PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		payload JSONB NOT NULL
	)`, tableName(collection), dimensions)
	_, err := p.db.ExecContext(ctx, q)
	return mapPQError(err)
}

// Delete drops the collection table.
func (p *PGVectorIndex) Delete(ctx context.Context, collection string) error {
	_, err := p.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName(collection))
	return mapPQError(err)
}

// Upsert writes points in one transaction.
func (p *PGVectorIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return mapPQError(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, tableName(collection)))
	if err != nil {
		return mapPQError(err)
	}
	defer stmt.Close()

	for _, pt := range points {
		payload, err := json.Marshal(pt.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for point %s: %w", pt.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, pt.ID, pgvector.NewVector(pt.Vector), string(payload)); err != nil {
			return mapPQError(err)
		}
	}
	return mapPQError(tx.Commit())
}

// Search returns the k nearest rows by cosine distance.
func (p *PGVectorIndex) Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score, payload
		FROM %s ORDER BY embedding <=> $1 LIMIT $2`, tableName(collection)),
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, mapPQError(err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h   Hit
			raw []byte
		)
		if err := rows.Scan(&h.ID, &h.Score, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(raw, &h.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, mapPQError(rows.Err())
}

// Count returns the number of rows.
func (p *PGVectorIndex) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName(collection)).Scan(&n)
	if err != nil {
		return 0, mapPQError(err)
	}
	return n, nil
}

// Ping checks the database connection.
func (p *PGVectorIndex) Ping(ctx context.Context) error {
	return mapPQError(p.db.PingContext(ctx))
}

// Close closes the database.
func (p *PGVectorIndex) Close() error {
	return p.db.Close()
}

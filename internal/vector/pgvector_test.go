package vector

import (
	"context"
	"errors"
	"os"
	"testing"
)

// Set YTRAG_TEST_POSTGRES_URL to a database with the pgvector extension available to run this test.
func TestPGVectorIndex(t *testing.T) {
	dsn := os.Getenv("YTRAG_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("YTRAG_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	idx, err := NewPGVectorIndex(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	const name = "pgvector_test"
	_ = idx.Delete(ctx, name)
	defer idx.Delete(ctx, name)

	if err := idx.Create(ctx, name, 2); err != nil {
		t.Fatal(err)
	}
	if err := idx.Create(ctx, name, 2); !errors.Is(err, ErrCollectionExists) {
		t.Errorf("second Create: %v", err)
	}
	pts := []Point{
		{ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{1, 0}, Payload: map[string]any{"content": "a"}},
		{ID: "22222222-2222-2222-2222-222222222222", Vector: []float32{0, 1}, Payload: map[string]any{"content": "b"}},
	}
	if err := idx.Upsert(ctx, name, pts); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, name, pts[:1]); err != nil {
		t.Fatal(err)
	}
	if n, err := idx.Count(ctx, name); err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}
	hits, err := idx.Search(ctx, name, []float32{1, 0}, 1)
	if err != nil || len(hits) != 1 || hits[0].Payload["content"] != "a" {
		t.Errorf("Search = %+v, %v", hits, err)
	}
	if _, err := idx.Count(ctx, "pgvector_missing"); !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Count missing: %v", err)
	}
}

func TestTableNameIsQuoted(t *testing.T) {
	if got := tableName(`a"b`); got != `"rag_a""b"` {
		t.Errorf("tableName = %s", got)
	}
}

package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

type countingEmbedder struct {
	MockEmbedder
	calls  int
	inputs []string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts...)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, text)
	return c.MockEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_OnlyMissesGoDownstream(t *testing.T) {
	next := &countingEmbedder{MockEmbedder: *NewMockEmbedder(8)}
	e := NewCachedEmbedder(next, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	for i, v := range out {
		if len(v) != 8 {
			t.Errorf("vector %d has %d dims", i, len(v))
		}
	}
	want := []string{"alpha", "beta", "gamma"}
	if len(next.inputs) != len(want) {
		t.Fatalf("downstream inputs = %v, want %v", next.inputs, want)
	}
	for i := range want {
		if next.inputs[i] != want[i] {
			t.Errorf("downstream[%d] = %q, want %q", i, next.inputs[i], want[i])
		}
	}

	if _, err := e.EmbedBatch(ctx, []string{"beta", "gamma"}); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2 (fully cached batch must not reach downstream)", next.calls)
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

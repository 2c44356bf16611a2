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
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

type countingEmbedder struct {
	*MockEmbedder
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, texts)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_BatchesMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := cached.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	out, err := cached.EmbedBatch(ctx, []string{"b", "c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.batches) != 2 || len(inner.batches[1]) != 1 || inner.batches[1][0] != "c" {
		t.Fatalf("expected second call to embed only the miss, got %v", inner.batches)
	}
	want, _ := inner.MockEmbedder.Embed(ctx, "a")
	for i := range want {
		if out[2][i] != want[i] {
			t.Fatal("cached vector out of order")
		}
	}
	if cached.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", cached.Dimensions())
	}
}

package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "hello")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should produce the same embedding")
		}
	}
	c, _ := e.Embed(context.Background(), "goodbye")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should produce different embeddings")
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	e := NewMockEmbedder(16)
	v, _ := e.Embed(context.Background(), "some message text")
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("norm: got %f, want 1", sum)
	}
}

func TestMockEmbedder_Batch(t *testing.T) {
	e := NewMockEmbedder(4)
	vs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 3 {
		t.Fatalf("batch size: got %d, want 3", len(vs))
	}
	single, _ := e.Embed(context.Background(), "b")
	for i := range single {
		if vs[1][i] != single[i] {
			t.Fatal("batch should preserve input order")
		}
	}
}

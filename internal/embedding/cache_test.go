package embedding

import (
	"sync"
	"testing"
)

func TestEmbeddingCache(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Error("expected cached value for a")
	}

	// "b" is now least recently used; adding "c" evicts it.
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be cached")
	}
}

func TestEmbeddingCache_Overwrite(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	if v, _ := c.Get("a"); v[0] != 9 {
		t.Errorf("overwrite: got %v", v)
	}
}

func TestEmbeddingCache_ConcurrentAccess(t *testing.T) {
	c := NewEmbeddingCache(8)
	for i := 0; i < 8; i++ {
		c.Set(string(rune('a'+i)), []float32{float32(i)})
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := string(rune('a' + (g+i)%8))
				if g%2 == 0 {
					c.Get(key)
				} else {
					c.Set(key, []float32{float32(i)})
				}
			}
		}(g)
	}
	wg.Wait()
	if _, ok := c.Get("a"); !ok {
		t.Error("key a should survive concurrent access")
	}
}

package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestBoundedGetSet(t *testing.T) {
	c := NewBounded[string, int](4)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}

	// Overwriting does not grow the cache.
	c.Set("a", 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d after overwrite, want 1", c.Len())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d after overwrite, want 2", v)
	}
}

func TestBoundedWholesaleClear(t *testing.T) {
	c := NewBounded[int, int](3)
	for i := 0; i < 3; i++ {
		c.Set(i, i)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}

	// The insert that would exceed capacity drops everything first.
	c.Set(99, 99)
	if c.Len() != 1 {
		t.Errorf("Len() = %d after overflow, want 1", c.Len())
	}
	if _, ok := c.Get(0); ok {
		t.Error("old entry survived the wholesale clear")
	}
	if v, ok := c.Get(99); !ok || v != 99 {
		t.Error("overflow insert missing")
	}
	if got := c.Stats().Clears; got != 1 {
		t.Errorf("Clears = %d, want 1", got)
	}
}

func TestBoundedDefaultCapacity(t *testing.T) {
	c := NewBounded[int, int](0)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", c.Capacity(), DefaultCapacity)
	}
}

func TestBoundedGetOrCreate(t *testing.T) {
	c := NewBounded[string, int](4)
	calls := 0
	create := func() int {
		calls++
		return 42
	}

	if v := c.GetOrCreate("k", create); v != 42 {
		t.Errorf("GetOrCreate = %d, want 42", v)
	}
	if v := c.GetOrCreate("k", create); v != 42 {
		t.Errorf("GetOrCreate = %d on hit, want 42", v)
	}
	if calls != 1 {
		t.Errorf("create ran %d times, want 1", calls)
	}
}

func TestBoundedDelete(t *testing.T) {
	c := NewBounded[string, int](4)
	c.Set("a", 1)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
}

func TestBoundedStats(t *testing.T) {
	c := NewBounded[string, int](4)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %g, want ~2/3", s.HitRate)
	}
	if s.Len != 1 || s.Capacity != 4 {
		t.Errorf("Len/Capacity = %d/%d, want 1/4", s.Len, s.Capacity)
	}
}

func TestBoundedConcurrent(t *testing.T) {
	c := NewBounded[string, int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%20)
				c.Set(key, n)
				c.Get(key)
				c.GetOrCreate(key, func() int { return n })
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > c.Capacity() {
		t.Errorf("Len() = %d exceeds capacity %d", c.Len(), c.Capacity())
	}
}

func TestHash64(t *testing.T) {
	a := Hash64([]byte("abc"))
	b := Hash64([]byte("abd"))
	if a == b {
		t.Error("distinct inputs hashed equal")
	}
	if a != HashString("abc") {
		t.Error("Hash64 and HashString disagree on identical content")
	}
	// FNV-1a of the empty input is the offset basis.
	if Hash64(nil) != 14695981039346656037 {
		t.Errorf("Hash64(nil) = %d, want offset basis", Hash64(nil))
	}
}

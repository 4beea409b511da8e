package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if pool.Workers() != runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want GOMAXPROCS (%d)", pool.Workers(), runtime.GOMAXPROCS(0))
	}
}

func TestWorkerPool_CreateNegativeWorkers(t *testing.T) {
	pool := NewWorkerPool(-5)
	defer pool.Close()

	if pool.Workers() <= 0 {
		t.Errorf("Workers() = %d, want > 0", pool.Workers())
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	pool.ExecuteAll(work)
	if counter.Load() != 100 {
		t.Errorf("executed %d items, want 100", counter.Load())
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// Must not panic or hang.
	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

func TestWorkerPool_ForRows(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	const height = 371
	covered := make([]atomic.Int32, height)
	pool.ForRows(height, func(y0, y1 int) {
		if y0 < 0 || y1 > height || y0 >= y1 {
			t.Errorf("bad range [%d, %d)", y0, y1)
		}
		for y := y0; y < y1; y++ {
			covered[y].Add(1)
		}
	})

	for y := range covered {
		if got := covered[y].Load(); got != 1 {
			t.Fatalf("row %d visited %d times, want exactly once", y, got)
		}
	}
}

func TestWorkerPool_ForRows_ZeroHeight(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	pool.ForRows(0, func(y0, y1 int) { called = true })
	if called {
		t.Error("fn called for zero height")
	}
}

func TestWorkerPool_ForRows_AfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	// Closed pools run the loop inline so callers still make progress.
	var mu sync.Mutex
	rows := 0
	pool.ForRows(10, func(y0, y1 int) {
		mu.Lock()
		rows += y1 - y0
		mu.Unlock()
	})
	if rows != 10 {
		t.Errorf("covered %d rows after close, want 10", rows)
	}
}

func TestWorkerPool_CloseTwice(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close() // must not panic
}

package index

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kailas-cloud/chishiki/internal/domain"
	"github.com/kailas-cloud/chishiki/internal/domain/chunk"
)

func mkChunk(t *testing.T, id string, vec []float32) chunk.Chunk {
	t.Helper()
	c, err := chunk.New(id, "doc", "text of "+id, vec, nil)
	if err != nil {
		t.Fatalf("chunk.New(%s): %v", id, err)
	}
	return c
}

func TestTopKBeforeFirstSwap(t *testing.T) {
	ix := New()
	if ix.Ready() {
		t.Error("fresh index reports Ready")
	}
	_, err := ix.TopK([]float32{1, 0}, 3)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

func TestTopKOrdering(t *testing.T) {
	ix := New()
	err := ix.Swap([]chunk.Chunk{
		mkChunk(t, "far", []float32{0, 1}),
		mkChunk(t, "near", []float32{1, 0.01}),
		mkChunk(t, "exact", []float32{1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ix.TopK([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"exact", "near", "far"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d results, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		c := got[i].Chunk()
		if c.ID() != want {
			t.Errorf("result[%d] = %s, want %s", i, c.ID(), want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score() > got[i-1].Score() {
			t.Errorf("scores not descending at %d: %f > %f", i, got[i].Score(), got[i-1].Score())
		}
	}
	if math.Abs(got[0].Score()-1.0) > 1e-9 {
		t.Errorf("identical vector score = %f, want 1.0", got[0].Score())
	}
}

func TestTopKTiesKeepInsertionOrder(t *testing.T) {
	ix := New()
	// Same direction, different magnitude: identical cosine scores.
	err := ix.Swap([]chunk.Chunk{
		mkChunk(t, "first", []float32{1, 1}),
		mkChunk(t, "second", []float32{2, 2}),
		mkChunk(t, "third", []float32{3, 3}),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ix.TopK([]float32{1, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"first", "second", "third"} {
		c := got[i].Chunk()
		if c.ID() != want {
			t.Errorf("tie order broken: result[%d] = %s, want %s", i, c.ID(), want)
		}
	}
}

func TestTopKBounds(t *testing.T) {
	ix := New()
	if err := ix.Swap([]chunk.Chunk{mkChunk(t, "only", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}

	got, err := ix.TopK([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("k larger than population: got %d results, want 1", len(got))
	}

	if _, err := ix.TopK([]float32{1, 0}, 0); err == nil {
		t.Error("k = 0 should error")
	}

	_, err = ix.TopK([]float32{1, 0, 0}, 1)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("query dimension mismatch: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestTopKEmptySnapshot(t *testing.T) {
	ix := New()
	if err := ix.Swap(nil); err != nil {
		t.Fatal(err)
	}
	if !ix.Ready() {
		t.Error("index with empty snapshot should be Ready")
	}
	got, err := ix.TopK([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("empty snapshot should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results from empty snapshot", len(got))
	}
}

func TestSwapRejectsMixedDimensions(t *testing.T) {
	ix := New()
	err := ix.Swap([]chunk.Chunk{
		mkChunk(t, "a", []float32{1, 0}),
		mkChunk(t, "b", []float32{1, 0, 0}),
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
	if ix.Ready() {
		t.Error("failed Swap must not install a snapshot")
	}
}

func TestSwapVisibleToConcurrentReaders(t *testing.T) {
	ix := New()
	if err := ix.Swap([]chunk.Chunk{mkChunk(t, "a", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := ix.TopK([]float32{1, 0}, 5)
				if err != nil {
					t.Errorf("TopK during swap: %v", err)
					return
				}
				// Either population is fine, a torn one is not.
				if n := len(res); n != 1 && n != 2 {
					t.Errorf("observed torn snapshot: %d results", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		err := ix.Swap([]chunk.Chunk{
			mkChunk(t, "a", []float32{1, 0}),
			mkChunk(t, "b", []float32{0, 1}),
		})
		if err != nil {
			t.Fatal(err)
		}
		err = ix.Swap([]chunk.Chunk{mkChunk(t, "a", []float32{1, 0})})
		if err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestCosineZeroNorm(t *testing.T) {
	ix := New()
	if err := ix.Swap([]chunk.Chunk{mkChunk(t, "a", []float32{0, 0})}); err != nil {
		t.Fatal(err)
	}
	got, err := ix.TopK([]float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Score() != 0 {
		t.Errorf("zero-norm vector score = %f, want 0", got[0].Score())
	}
}

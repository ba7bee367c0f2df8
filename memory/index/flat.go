// Package index provides the default in-memory vector index over the
// trajectory log: a flat slice of embeddings searched exhaustively
// with exact cosine similarity.
//
// Exhaustive search is deliberate. Stores here hold one entry per
// remembered task, not millions of chunks, and exact top-1 with a
// deterministic earliest-wins tie break is part of the retrieval
// contract.
package index

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recallkit/recallkit-go/core"
	"github.com/recallkit/recallkit-go/memory"
)

// rebuildParallelism bounds concurrent embedding calls during Rebuild.
const rebuildParallelism = 8

// Flat is the default memory.Index implementation. Entry order mirrors
// log order; a nil vector marks a slot whose embedding failed and is
// healed by the next Rebuild.
type Flat struct {
	mu      sync.RWMutex
	vectors [][]float32
}

// NewFlat creates an empty flat index.
func NewFlat() *Flat {
	return &Flat{}
}

// Rebuild batch-encodes every unit's task, replacing prior state.
// Embedding calls run concurrently, but vectors land in canonical unit
// order, not completion order. A failed embedding leaves a vectorless
// slot so the index stays aligned with the log; the first failure is
// returned once the whole pass has finished.
func (f *Flat) Rebuild(ctx context.Context, units []core.Unit, emb memory.Embedder) error {
	vectors := make([][]float32, len(units))

	var (
		errMu    sync.Mutex
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(rebuildParallelism)
	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			vec, err := emb.Embed(ctx, unit.Task)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	g.Wait()

	f.mu.Lock()
	f.vectors = vectors
	f.mu.Unlock()
	return firstErr
}

// Extend encodes and appends a single new unit's vector. On an
// embedding failure the slot is still reserved, vectorless, and the
// error returned.
func (f *Flat) Extend(ctx context.Context, unit core.Unit, emb memory.Embedder) error {
	vec, err := emb.Embed(ctx, unit.Task)

	f.mu.Lock()
	f.vectors = append(f.vectors, vec)
	f.mu.Unlock()
	return err
}

// Search returns the ref and cosine score of the best entry, or
// found=false when the index holds no usable vectors. Ties break
// toward the earliest-inserted unit: only a strictly better score
// displaces the current best.
func (f *Flat) Search(_ context.Context, query []float32) (int, float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bestRef := -1
	bestScore := 0.0
	for i, vec := range f.vectors {
		if vec == nil || len(vec) != len(query) {
			continue
		}
		score := Cosine(query, vec)
		if bestRef == -1 || score > bestScore {
			bestRef = i
			bestScore = score
		}
	}
	if bestRef == -1 {
		return -1, 0, false
	}
	return bestRef, bestScore, true
}

// Len returns the number of entries, vectorless slots included.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Cosine computes cosine similarity between two equal-length vectors.
// A zero vector scores 0 against everything.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Package chromem backs the vector index with chromem-go, a pure Go
// embedded vector database.
//
// It implements the same contract as index.Flat with one caveat:
// chromem's result ordering on exact score ties is unspecified, so
// hosts that depend on the earliest-wins tie break should stay on the
// flat index. Everything else (top-1 cosine, log alignment, vectorless
// slots) holds.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"

	"github.com/recallkit/recallkit-go/core"
	"github.com/recallkit/recallkit-go/memory"
)

const (
	collectionName     = "trajectories"
	rebuildParallelism = 8
)

// Index is a chromem-go backed memory.Index. Document IDs are the
// decimal log refs, so a query result maps straight back to its unit.
type Index struct {
	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	size int // log-aligned entry count, vectorless slots included
	docs int // documents actually held by chromem
}

// New creates an empty chromem-backed index.
func New() (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, col: col}, nil
}

// Rebuild batch-encodes every unit's task into a fresh collection.
// Embedding runs concurrently; documents are added in canonical unit
// order. A failed embedding leaves a vectorless slot (counted, not
// stored) and the first failure is returned after the pass.
func (x *Index) Rebuild(ctx context.Context, units []core.Unit, emb memory.Embedder) error {
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

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	col, err := x.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	x.col = col
	x.size = len(units)
	x.docs = 0

	for ref, vec := range vectors {
		if vec == nil {
			continue
		}
		doc := chromem.Document{
			ID:        strconv.Itoa(ref),
			Content:   units[ref].Task,
			Embedding: vec,
		}
		if err := x.col.AddDocument(ctx, doc); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("add document %d: %w", ref, err)
			}
			continue
		}
		x.docs++
	}
	return firstErr
}

// Extend encodes and appends a single new unit. On an embedding
// failure the slot is reserved without a document and the error
// returned; the next Rebuild heals it.
func (x *Index) Extend(ctx context.Context, unit core.Unit, emb memory.Embedder) error {
	vec, err := emb.Embed(ctx, unit.Task)

	x.mu.Lock()
	defer x.mu.Unlock()

	ref := x.size
	x.size++
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        strconv.Itoa(ref),
		Content:   unit.Task,
		Embedding: vec,
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document %d: %w", ref, err)
	}
	x.docs++
	return nil
}

// Search returns the ref and cosine score of the single best
// document, or found=false on an empty index. Query failures are
// logged and reported as no match, matching the engine's posture that
// a subsystem failure is indistinguishable from a miss.
func (x *Index) Search(ctx context.Context, query []float32) (int, float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.docs == 0 {
		return -1, 0, false
	}

	results, err := x.col.QueryEmbedding(ctx, query, 1, nil, nil)
	if err != nil {
		log.Printf("[CHROMEM] Query failed: %v", err)
		return -1, 0, false
	}
	if len(results) == 0 {
		return -1, 0, false
	}

	ref, err := strconv.Atoi(results[0].ID)
	if err != nil {
		log.Printf("[CHROMEM] Unparseable document ID %q: %v", results[0].ID, err)
		return -1, 0, false
	}
	return ref, float64(results[0].Similarity), true
}

// Len returns the number of entries, vectorless slots included.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.size
}

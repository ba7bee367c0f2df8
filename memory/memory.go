package memory

import (
	"context"

	"github.com/recallkit/recallkit-go/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing), onnx.Embedder (local SDK),
// openai.Embedder (API-based).
//
// Embeddings must be stable for a given model version: the durable log
// stores no vectors, so every task is re-encoded at load.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Store is the durable trajectory log: an ordered, append-only
// sequence of memory units, identity = insertion order. It is the
// source of truth on disk; the Index is derived from it and never
// authoritative.
//
// Implementations: jsonlog.Store (single JSON file, atomic replace).
type Store interface {
	// Load reads durable storage into memory and returns every unit in
	// insertion order. Missing storage is an empty store, not an
	// error. Corrupt storage is logged, preserved for inspection, and
	// treated as empty.
	Load(ctx context.Context) ([]core.Unit, error)

	// Append persists the full updated log and returns the new unit's
	// stable positional ref. The on-disk replace is atomic: a crash
	// mid-write never exposes a truncated or mixed state. On a write
	// failure the in-memory log still holds the unit; the error
	// reports the lost durability.
	Append(ctx context.Context, unit core.Unit) (int, error)

	// Unit returns the unit at ref, if it exists.
	Unit(ref int) (core.Unit, bool)

	// Units returns a snapshot of the in-memory log in insertion order.
	Units() []core.Unit

	// Len returns the number of units currently held.
	Len() int
}

// Index is the in-memory vector cache over the log: one entry per
// unit, same order. It is rebuilt wholesale at startup and extended on
// writes; Extend over unit N must be observationally equivalent to a
// full Rebuild over units 0..N.
//
// Implementations: index.Flat (exact cosine, default),
// chromem.Index (chromem-go backed).
type Index interface {
	// Rebuild batch-encodes every unit's task, replacing prior state.
	// A unit whose embedding fails keeps its slot with no vector so
	// index and log stay aligned; the first error is returned after
	// the pass completes.
	Rebuild(ctx context.Context, units []core.Unit, emb Embedder) error

	// Extend encodes and appends a single new unit's vector. On an
	// embedding failure the slot is still reserved (vectorless) and
	// the error returned; the next Rebuild heals it.
	Extend(ctx context.Context, unit core.Unit, emb Embedder) error

	// Search returns the ref and cosine score of the single best
	// entry, or found=false on an empty index. Ties break toward the
	// earliest-inserted unit.
	Search(ctx context.Context, query []float32) (ref int, score float64, found bool)

	// Len returns the number of entries, vectorless slots included.
	Len() int
}

package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/recallkit/recallkit-go/core"
)

// Engine composes the trajectory log, the vector index, the retriever
// and the sanitizer behind the two calls the host agent makes:
// Memorize after a certified-successful run, Recall before planning.
//
// Construction loads the log and rebuilds the index, so a returned
// Engine is always Ready. After that no failure escapes: persistence
// and embedding errors are logged and swallowed, and the absence of a
// hit is indistinguishable from a subsystem failure. The host's run
// loop never breaks because its memory did.
//
// The index and embedder may both be nil, selecting the degraded
// lexical scorer for every Recall. Passing an embedder without an
// index (or vice versa) is a configuration error.
type Engine struct {
	store    Store
	index    Index
	embedder Embedder
	cache    *ristretto.Cache
	config   *Config

	// Serializes Memorize so log and index extend together.
	// Recall takes no lock; it reads a stable snapshot.
	writeMu sync.Mutex
}

// NewEngine creates a Ready engine: the log is loaded and the index
// rebuilt from it before the constructor returns. Embedding failures
// during the rebuild are logged, not fatal; the affected slots stay
// vectorless until a later rebuild.
func NewEngine(ctx context.Context, store Store, index Index, embedder Embedder, config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig
	}
	if (index == nil) != (embedder == nil) {
		return nil, fmt.Errorf("index and embedder must be configured together (index=%v, embedder=%v)", index != nil, embedder != nil)
	}

	e := &Engine{
		store:    store,
		index:    index,
		embedder: embedder,
		config:   config,
	}

	if config.CacheQueryEmbeddings && embedder != nil {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10_000,
			MaxCost:     1 << 24,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		e.cache = cache
	}

	units, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trajectory log: %w", err)
	}
	if index != nil {
		ectx, cancel := e.embedCtx(ctx)
		err := index.Rebuild(ectx, units, embedder)
		cancel()
		if err != nil {
			log.Printf("[MEMORY] Index rebuild left vectorless slots: %v", err)
		}
	}

	log.Printf("[MEMORY] Engine ready with %d remembered trajectories", store.Len())
	return e, nil
}

// Memorize sanitizes the raw trace, appends the resulting unit to the
// log and extends the index. It never fails the caller's run:
// persistence and embedding errors are logged and swallowed. Only a
// context cancelled before the append commits leaves the store in its
// pre-call state.
func (e *Engine) Memorize(ctx context.Context, task string, raw []core.Step) {
	if !e.config.Enabled {
		return
	}
	if strings.TrimSpace(task) == "" {
		log.Printf("[MEMORY] Ignoring memorize with empty task")
		return
	}

	trajectory := Sanitize(raw)
	if len(trajectory) == 0 {
		log.Printf("[MEMORY] Nothing to memorize for task: %q", truncateLog(task, 50))
		return
	}
	unit := core.NewUnit(task, trajectory)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	ref, err := e.store.Append(ctx, unit)
	if err != nil {
		if ref < 0 {
			// Cancelled before commit; log untouched.
			log.Printf("[MEMORY] Memorize abandoned: %v", err)
			return
		}
		log.Printf("[MEMORY] Unit %s held in memory only, persistence failed: %v", unit.ID, err)
	}

	if e.index != nil {
		ectx, cancel := e.embedCtx(ctx)
		err := e.index.Extend(ectx, unit, e.embedder)
		cancel()
		if err != nil {
			log.Printf("[MEMORY] Embedding deferred for unit %s: %v", unit.ID, err)
		}
	}

	log.Printf("[MEMORY] Memorized task %q (%d actions, ref=%d)", truncateLog(task, 50), len(trajectory), ref)
}

// Recall returns the closest prior success for the task, or nil when
// nothing clears the similarity threshold. Empty store, sub-threshold
// best match, embedder failure with no surviving fallback: all nil,
// silently. When the embedder fails or times out, Recall falls back to
// the lexical scorer over stored task texts.
func (e *Engine) Recall(ctx context.Context, task string) *Match {
	if !e.config.Enabled {
		return nil
	}
	if e.store.Len() == 0 {
		return nil
	}
	if e.index == nil {
		return e.lexicalRecall(task)
	}

	query, err := e.queryVector(ctx, task)
	if err != nil {
		log.Printf("[MEMORY] Query embedding failed, using lexical fallback: %v", err)
		return e.lexicalRecall(task)
	}

	// The index is a derived cache; if it ever disagrees with the log,
	// the log wins and the index is rebuilt from it.
	if e.index.Len() != e.store.Len() {
		log.Printf("[MEMORY] Index out of sync (%d entries, %d units), rebuilding", e.index.Len(), e.store.Len())
		ectx, cancel := e.embedCtx(ctx)
		err := e.index.Rebuild(ectx, e.store.Units(), e.embedder)
		cancel()
		if err != nil {
			log.Printf("[MEMORY] Index rebuild left vectorless slots: %v", err)
		}
	}

	ref, score, found := e.index.Search(ctx, query)
	if !found {
		return nil
	}
	if score < e.config.MinSimilarity {
		log.Printf("[MEMORY] Best match below threshold (%.2f < %.2f), treating as no memory", score, e.config.MinSimilarity)
		return nil
	}

	unit, ok := e.store.Unit(ref)
	if !ok {
		log.Printf("[MEMORY] Index returned dangling ref %d", ref)
		return nil
	}

	log.Printf("[MEMORY] Recalled task %q (score %.2f)", truncateLog(unit.Task, 50), score)
	return &Match{Task: unit.Task, Trajectory: unit.Trajectory, Score: score}
}

// lexicalRecall scans stored task texts with the token-overlap scorer.
// Ties break toward the earliest-inserted unit, like the vector path.
func (e *Engine) lexicalRecall(task string) *Match {
	var best *core.Unit
	bestScore := 0.0
	units := e.store.Units()
	for i := range units {
		score := TokenOverlap(task, units[i].Task)
		if best == nil || score > bestScore {
			best = &units[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < e.config.LexicalThreshold {
		return nil
	}

	log.Printf("[MEMORY] Recalled task %q (lexical score %.2f)", truncateLog(best.Task, 50), bestScore)
	return &Match{Task: best.Task, Trajectory: best.Trajectory, Score: bestScore}
}

// queryVector embeds the task text, consulting the ristretto cache
// first so repeated recalls of the same task skip the embedder.
func (e *Engine) queryVector(ctx context.Context, task string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(task); ok {
			return v.([]float32), nil
		}
	}

	ectx, cancel := e.embedCtx(ctx)
	defer cancel()
	vec, err := e.embedder.Embed(ectx, task)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(task, vec, int64(len(vec)*4))
	}
	return vec, nil
}

// embedCtx bounds an embedding call so a stalled embedder degrades to
// the fallback scorer instead of stalling the agent's run loop.
func (e *Engine) embedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.EmbedTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.EmbedTimeout)
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Config holds Engine tuning.
type Config struct {
	// Enabled toggles the memory system on/off. When off, Memorize and
	// Recall are no-ops.
	Enabled bool

	// MinSimilarity is the cosine threshold for the embedding scorer
	// [0.0-1.0]. A best match below it is strictly "no relevant
	// memory", never a weak hint.
	// Default: 0.6. Tiny local models (all-MiniLM-L6-v2) score similar
	// text lower (~0.35); tune per embedder.
	MinSimilarity float64

	// LexicalThreshold is the token-overlap threshold for the degraded
	// scorer. Its score distribution sits lower than cosine, hence the
	// separate default: 0.5.
	LexicalThreshold float64

	// EmbedTimeout bounds every embedder call. On expiry Recall falls
	// back to the lexical scorer and Memorize defers embedding to the
	// next rebuild. Zero means no bound.
	EmbedTimeout time.Duration

	// CacheQueryEmbeddings enables the in-process cache of query
	// vectors keyed by task text.
	CacheQueryEmbeddings bool
}

// DefaultConfig returns sensible defaults for local use.
var DefaultConfig = &Config{
	Enabled:              true,
	MinSimilarity:        0.6,
	LexicalThreshold:     0.5,
	EmbedTimeout:         10 * time.Second,
	CacheQueryEmbeddings: true,
}

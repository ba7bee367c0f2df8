package index_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/recallkit/recallkit-go/core"
	"github.com/recallkit/recallkit-go/memory/index"
)

// stubEmbedder returns fixed vectors per text so similarity is fully
// under the test's control.
type stubEmbedder struct {
	vecs map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := s.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return vec, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

func TestFlat_EmptySearch(t *testing.T) {
	idx := index.NewFlat()

	ref, score, found := idx.Search(context.Background(), []float32{1, 0, 0})
	if found {
		t.Errorf("Search on empty index found ref=%d score=%v", ref, score)
	}
}

func TestFlat_SearchFindsBest(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"book a table":    {1, 0, 0},
		"water plants":    {0, 1, 0},
		"send an invoice": {0, 0, 1},
	}}

	units := []core.Unit{
		core.NewUnit("book a table", nil),
		core.NewUnit("water plants", nil),
		core.NewUnit("send an invoice", nil),
	}

	idx := index.NewFlat()
	if err := idx.Rebuild(ctx, units, emb); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	ref, score, found := idx.Search(ctx, []float32{0.8, 0.6, 0})
	if !found {
		t.Fatal("Expected a match")
	}
	if ref != 0 {
		t.Errorf("Best ref = %d, want 0", ref)
	}
	if math.Abs(score-0.8) > 1e-6 {
		t.Errorf("Score = %v, want 0.8", score)
	}
}

func TestFlat_ExtendEquivalentToRebuild(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"gamma": {0.6, 0.8, 0},
	}}

	units := []core.Unit{
		core.NewUnit("alpha", nil),
		core.NewUnit("beta", nil),
		core.NewUnit("gamma", nil),
	}

	rebuilt := index.NewFlat()
	if err := rebuilt.Rebuild(ctx, units, emb); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	extended := index.NewFlat()
	if err := extended.Rebuild(ctx, units[:2], emb); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if err := extended.Extend(ctx, units[2], emb); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}

	if rebuilt.Len() != extended.Len() {
		t.Fatalf("Len mismatch: rebuild=%d extend=%d", rebuilt.Len(), extended.Len())
	}

	for _, query := range [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.6, 0.8, 0},
		{0.5, 0.5, 0.7},
	} {
		r1, s1, f1 := rebuilt.Search(ctx, query)
		r2, s2, f2 := extended.Search(ctx, query)
		if r1 != r2 || f1 != f2 || math.Abs(s1-s2) > 1e-9 {
			t.Errorf("Query %v: rebuild (%d, %v, %v) != extend (%d, %v, %v)", query, r1, s1, f1, r2, s2, f2)
		}
	}
}

func TestFlat_TieBreaksEarliest(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"first copy":  {0, 1, 0},
		"second copy": {0, 1, 0},
	}}

	idx := index.NewFlat()
	err := idx.Rebuild(ctx, []core.Unit{
		core.NewUnit("first copy", nil),
		core.NewUnit("second copy", nil),
	}, emb)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	ref, _, found := idx.Search(ctx, []float32{0, 1, 0})
	if !found || ref != 0 {
		t.Errorf("Tie resolved to ref %d (found=%v), want earliest ref 0", ref, found)
	}
}

func TestFlat_VectorlessSlotKeepsAlignment(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"known task": {1, 0, 0},
	}}

	idx := index.NewFlat()
	if err := idx.Extend(ctx, core.NewUnit("known task", nil), emb); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if err := idx.Extend(ctx, core.NewUnit("unknown task", nil), emb); err == nil {
		t.Fatal("Extend with failing embedder should return the error")
	}

	if idx.Len() != 2 {
		t.Errorf("Len = %d, want 2 (vectorless slot reserved)", idx.Len())
	}

	ref, _, found := idx.Search(ctx, []float32{1, 0, 0})
	if !found || ref != 0 {
		t.Errorf("Search = (%d, found=%v), want ref 0", ref, found)
	}
}

func TestFlat_RebuildReplacesPriorState(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vecs: map[string][]float32{
		"old": {1, 0, 0},
		"new": {0, 1, 0},
	}}

	idx := index.NewFlat()
	if err := idx.Rebuild(ctx, []core.Unit{core.NewUnit("old", nil)}, emb); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if err := idx.Rebuild(ctx, []core.Unit{core.NewUnit("new", nil)}, emb); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("Len = %d after rebuild, want 1", idx.Len())
	}
	ref, score, found := idx.Search(ctx, []float32{0, 1, 0})
	if !found || ref != 0 || math.Abs(score-1) > 1e-6 {
		t.Errorf("Search = (%d, %v, %v), want exact match on the new unit", ref, score, found)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := index.Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

package memory

import "strings"

// TokenOverlap scores two texts by Jaccard similarity over their
// lower-cased whitespace tokens: |intersection| / |union|.
//
// This is the degraded scorer: when no embedder is configured, or an
// embedding call fails or times out, Recall falls back to scanning
// stored task texts with TokenOverlap instead of cosine search. Same
// input/output shape as the embedding path, its own threshold
// (Config.LexicalThreshold).
func TokenOverlap(a, b string) float64 {
	at := tokenSet(a)
	bt := tokenSet(b)

	inter := 0
	for tok := range at {
		if _, ok := bt[tok]; ok {
			inter++
		}
	}
	union := len(at) + len(bt) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

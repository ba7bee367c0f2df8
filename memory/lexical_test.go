package memory_test

import (
	"math"
	"testing"

	"github.com/recallkit/recallkit-go/memory"
)

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "find cheapest flight", "find cheapest flight", 1.0},
		{"case and order insensitive", "Flight Cheapest find", "find cheapest flight", 1.0},
		{"partial", "cheapest flight to Tokyo", "find cheapest flight to Tokyo", 0.8},
		{"mostly disjoint", "check the weather in Tokyo", "find cheapest flight to Tokyo", 1.0 / 9.0},
		{"disjoint", "water the plants", "send an invoice", 0.0},
		{"both empty", "", "", 0.0},
		{"one empty", "", "find flights", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := memory.TokenOverlap(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TokenOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

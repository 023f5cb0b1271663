package channelsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"news", "news", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"news", "nws", 1},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"café", "cafe", 1},
		{"sports", "sprts", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
		assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a), "%q -> %q", tt.b, tt.a)
	}
}

func TestFuzzyThreshold(t *testing.T) {
	for n, want := range map[int]int{1: 1, 2: 1, 3: 1, 4: 2, 6: 2, 7: 3, 9: 3, 10: 4} {
		assert.Equal(t, want, fuzzyThreshold(n), "length %d", n)
	}
}

package channelsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"separators", "BBC News-HD_live.tv", []string{"bbc", "news", "hd", "live", "tv"}},
		{"drops short tokens", "a TV x y 24", []string{"tv", "24"}},
		{"keeps punctuation", "Sky (HD) @sky", []string{"sky", "(hd)", "@sky"}},
		{"runs of separators", "one -- two__three..four\tfive", []string{"one", "two", "three", "four", "five"}},
		{"counts runes", "é éé Ñandú", []string{"éé", "ñandú"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

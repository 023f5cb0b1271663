package channelsearch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTermLength is the minimum number of runes a term needs to be indexed.
const minTermLength = 2

// Tokenize lower-cases text and splits it on whitespace, hyphens,
// underscores, and dots. Tokens shorter than two runes are dropped. Other
// punctuation is kept as part of the token.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTermLength {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '.':
		return true
	}
	return unicode.IsSpace(r)
}

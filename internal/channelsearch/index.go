package channelsearch

import (
	"sort"
	"strings"
)

// idSet is the set of channel IDs indexed under a single term.
type idSet map[string]struct{}

// snapshot is an immutable view of one channel catalog and the inverted
// index derived from it. A snapshot is never modified after buildSnapshot
// returns.
type snapshot struct {
	generation uint64
	channels   []Channel
	byID       map[string]int
	index      map[string]idSet
	terms      []string
	// duplicates counts input channels dropped for repeating an earlier ID.
	duplicates int
}

// buildSnapshot copies channels and indexes every term of length >= 2 found
// in the indexed fields of each channel. A channel whose ID was already seen
// is dropped; the first occurrence wins.
func buildSnapshot(channels []Channel, generation uint64) *snapshot {
	s := &snapshot{
		generation: generation,
		channels:   make([]Channel, 0, len(channels)),
		byID:       make(map[string]int, len(channels)),
		index:      make(map[string]idSet),
	}

	for _, ch := range channels {
		if _, exists := s.byID[ch.ID]; exists {
			s.duplicates++
			continue
		}
		s.byID[ch.ID] = len(s.channels)
		s.channels = append(s.channels, ch)
		for _, field := range ch.indexedText() {
			for _, term := range Tokenize(field) {
				ids, exists := s.index[term]
				if !exists {
					ids = make(idSet)
					s.index[term] = ids
				}
				ids[ch.ID] = struct{}{}
			}
		}
	}

	s.terms = make([]string, 0, len(s.index))
	for term := range s.index {
		s.terms = append(s.terms, term)
	}
	sort.Strings(s.terms)
	return s
}

// lookup returns the channel with the given ID.
func (s *snapshot) lookup(id string) (*Channel, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.channels[i], true
}

// termsWithPrefix returns the sorted indexed terms starting with prefix, at
// most limit of them.
func (s *snapshot) termsWithPrefix(prefix string, limit int) []string {
	start := sort.SearchStrings(s.terms, prefix)
	result := make([]string, 0, limit)
	for i := start; i < len(s.terms) && len(result) < limit; i++ {
		if !strings.HasPrefix(s.terms[i], prefix) {
			break
		}
		result = append(result, s.terms[i])
	}
	return result
}

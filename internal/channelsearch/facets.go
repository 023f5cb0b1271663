package channelsearch

import (
	"fmt"
	"sort"
	"strings"
)

const (
	defaultSuggestionLimit = 10
	defaultTrendingLimit   = 10
	defaultSimilarLimit    = 5
)

// Suggestion is an indexed term offered for autocompletion, with the number
// of channels containing it.
type Suggestion struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// FacetCount is the number of channels sharing one facet value.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TrendingSearch is a "{category} - {country}" combination and its number
// of channels.
type TrendingSearch struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Stats summarises the current snapshot.
type Stats struct {
	TotalChannels    int            `json:"totalChannels"`
	UniqueCategories int            `json:"uniqueCategories"`
	UniqueCountries  int            `json:"uniqueCountries"`
	UniqueLanguages  int            `json:"uniqueLanguages"`
	IndexedTerms     int            `json:"indexedTerms"`
	Sources          map[string]int `json:"sources"`
}

// GetSuggestions returns up to limit indexed terms starting with prefix
// (case-insensitive), sorted lexicographically. An empty prefix yields no
// suggestions.
func (cs *ChannelSearch) GetSuggestions(prefix string, limit int) []Suggestion {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return []Suggestion{}
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	snap := cs.current.Load()
	terms := snap.termsWithPrefix(prefix, limit)
	result := make([]Suggestion, 0, len(terms))
	for _, term := range terms {
		result = append(result, Suggestion{Text: term, Count: len(snap.index[term])})
	}
	return result
}

// GetCategories counts channels per category, most common first.
func (cs *ChannelSearch) GetCategories() []FacetCount {
	return countFacet(cs.current.Load().channels, func(c *Channel) string { return c.Category })
}

// GetCountries counts channels per country, most common first.
func (cs *ChannelSearch) GetCountries() []FacetCount {
	return countFacet(cs.current.Load().channels, func(c *Channel) string { return c.Country })
}

// GetLanguages counts channels per language, most common first.
func (cs *ChannelSearch) GetLanguages() []FacetCount {
	return countFacet(cs.current.Load().channels, func(c *Channel) string { return c.Language })
}

// GetStats returns aggregate counts over the current snapshot.
func (cs *ChannelSearch) GetStats() Stats {
	snap := cs.current.Load()
	sources := make(map[string]int)
	for i := range snap.channels {
		sources[orUnknown(snap.channels[i].Source)]++
	}
	return Stats{
		TotalChannels:    len(snap.channels),
		UniqueCategories: len(countFacet(snap.channels, func(c *Channel) string { return c.Category })),
		UniqueCountries:  len(countFacet(snap.channels, func(c *Channel) string { return c.Country })),
		UniqueLanguages:  len(countFacet(snap.channels, func(c *Channel) string { return c.Language })),
		IndexedTerms:     len(snap.index),
		Sources:          sources,
	}
}

// GetTrendingSearches returns the most frequent "{category} - {country}"
// combinations of the current snapshot. It is a static heuristic over the
// catalog, not a record of actual searches.
func (cs *ChannelSearch) GetTrendingSearches(limit int) []TrendingSearch {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	combos := countFacet(cs.current.Load().channels, func(c *Channel) string {
		return fmt.Sprintf("%s - %s", orUnknown(c.Category), orUnknown(c.Country))
	})
	if len(combos) > limit {
		combos = combos[:limit]
	}
	result := make([]TrendingSearch, 0, len(combos))
	for _, combo := range combos {
		result = append(result, TrendingSearch{Text: combo.Name, Count: combo.Count})
	}
	return result
}

// FindSimilar returns up to limit other channels with the same category and
// country as the channel with the given ID. Unknown IDs yield no channels.
func (cs *ChannelSearch) FindSimilar(channelID string, limit int) []Channel {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	snap := cs.current.Load()
	target, ok := snap.lookup(channelID)
	if !ok {
		return []Channel{}
	}
	result := make([]Channel, 0, limit)
	for i := range snap.channels {
		if len(result) >= limit {
			break
		}
		c := &snap.channels[i]
		if c.ID == target.ID {
			continue
		}
		if c.Category == target.Category && c.Country == target.Country {
			result = append(result, *c)
		}
	}
	return result
}

// countFacet counts channels per value of field, with empty values counted
// under "Unknown". The result is sorted by descending count; equal counts
// keep first-seen order.
func countFacet(channels []Channel, field func(*Channel) string) []FacetCount {
	positions := make(map[string]int)
	result := make([]FacetCount, 0)
	for i := range channels {
		value := orUnknown(field(&channels[i]))
		if pos, ok := positions[value]; ok {
			result[pos].Count++
			continue
		}
		positions[value] = len(result)
		result = append(result, FacetCount{Name: value, Count: 1})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

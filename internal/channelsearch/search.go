package channelsearch

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	// DefaultLimit is the page size used when SearchOptions.Limit is unset.
	DefaultLimit = 50

	exactMatchScore = 10
	fuzzyMatchScore = 5
)

// Sort modes accepted by SearchOptions.SortBy.
const (
	SortRelevance = "relevance"
	SortName      = "name"
	SortRecent    = "recent"
)

// ValidSort reports whether sortBy names a supported sort mode. The empty
// string selects the default (relevance).
func ValidSort(sortBy string) bool {
	switch sortBy {
	case "", SortRelevance, SortName, SortRecent:
		return true
	}
	return false
}

// SearchOptions controls filtering, ordering, and pagination of a search.
// Empty filter fields impose no constraint.
type SearchOptions struct {
	Category string `json:"category,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
	SortBy   string `json:"sortBy,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	// Fuzzy enables edit-distance matching; nil means enabled.
	Fuzzy *bool `json:"fuzzy,omitempty"`
}

func (o SearchOptions) fuzzy() bool {
	return o.Fuzzy == nil || *o.Fuzzy
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o SearchOptions) offset() int {
	if o.Offset < 0 {
		return 0
	}
	return o.Offset
}

// Bool returns a pointer to v, for SearchOptions.Fuzzy.
func Bool(v bool) *bool {
	return &v
}

// SearchResult is one page of search results. Total counts every channel
// that survived filtering, before pagination. Offset is the requested offset
// clamped to Total, so Offset+len(Results) never exceeds Total.
type SearchResult struct {
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Results []Channel `json:"results"`
}

// ChannelSearch owns one channel snapshot and the inverted index built from
// it. Queries run against an immutable snapshot loaded once per call, so
// they are safe to issue concurrently with UpdateChannels.
type ChannelSearch struct {
	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
	writeMu    sync.Mutex
	logger     *slog.Logger
}

// New creates a ChannelSearch indexing the given channels.
func New(channels []Channel) *ChannelSearch {
	cs := &ChannelSearch{
		logger: slog.Default().With("component", "channel-search"),
	}
	cs.UpdateChannels(channels)
	return cs
}

// UpdateChannels replaces the channel snapshot and rebuilds the index from
// scratch. The new snapshot becomes visible to queries atomically.
func (cs *ChannelSearch) UpdateChannels(channels []Channel) {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()

	snap := buildSnapshot(channels, cs.generation.Add(1))
	cs.current.Store(snap)
	if snap.duplicates > 0 {
		cs.logger.Warn("dropped channels with duplicate ids",
			"generation", snap.generation,
			"dropped", snap.duplicates,
		)
	}
	cs.logger.Debug("channel index rebuilt",
		"generation", snap.generation,
		"channels", len(snap.channels),
		"terms", len(snap.terms),
	)
}

// Generation returns the version of the snapshot currently served. It
// increases by one on every UpdateChannels.
func (cs *ChannelSearch) Generation() uint64 {
	return cs.current.Load().generation
}

// Len returns the number of channels in the current snapshot.
func (cs *ChannelSearch) Len() int {
	return len(cs.current.Load().channels)
}

// TermCount returns the number of distinct indexed terms.
func (cs *ChannelSearch) TermCount() int {
	return len(cs.current.Load().index)
}

// Channel returns the channel with the given ID from the current snapshot.
func (cs *ChannelSearch) Channel(id string) (Channel, bool) {
	ch, ok := cs.current.Load().lookup(id)
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// Terms returns a copy of the inverted index: each term mapped to the
// sorted IDs of the channels containing it.
func (cs *ChannelSearch) Terms() map[string][]string {
	snap := cs.current.Load()
	result := make(map[string][]string, len(snap.index))
	for term, ids := range snap.index {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		result[term] = list
	}
	return result
}

type scoredChannel struct {
	channel  *Channel
	position int
	score    int
}

// Search matches query against the index and returns one page of results.
// An empty or whitespace query matches every channel. Each query token
// scores +10 for every channel indexed under it and, with fuzzy matching,
// +5 for every other indexed term within ceil(len/3) edits.
func (cs *ChannelSearch) Search(query string, opts SearchOptions) SearchResult {
	snap := cs.current.Load()

	var candidates []scoredChannel
	if strings.TrimSpace(query) == "" {
		candidates = make([]scoredChannel, len(snap.channels))
		for i := range snap.channels {
			candidates[i] = scoredChannel{channel: &snap.channels[i], position: i}
		}
	} else {
		scores := snap.score(Tokenize(query), opts.fuzzy())
		candidates = make([]scoredChannel, 0, len(scores))
		for id, score := range scores {
			pos, ok := snap.byID[id]
			if !ok {
				continue
			}
			candidates = append(candidates, scoredChannel{
				channel:  &snap.channels[pos],
				position: pos,
				score:    score,
			})
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].position < candidates[j].position
		})
	}

	candidates = filterCandidates(candidates, opts)
	sortCandidates(candidates, opts.SortBy)

	limit, offset := opts.limit(), opts.offset()
	result := SearchResult{
		Total:   len(candidates),
		Limit:   limit,
		Offset:  min(offset, len(candidates)),
		Results: []Channel{},
	}
	if offset < len(candidates) {
		end := min(offset+limit, len(candidates))
		result.Results = make([]Channel, 0, end-offset)
		for _, c := range candidates[offset:end] {
			result.Results = append(result.Results, *c.channel)
		}
	}
	return result
}

// score accumulates relevance per channel ID across all query tokens.
func (s *snapshot) score(tokens []string, fuzzy bool) map[string]int {
	scores := make(map[string]int)
	add := func(ids idSet, points int) {
		for id := range ids {
			scores[id] += points
		}
	}
	for _, token := range tokens {
		if ids, ok := s.index[token]; ok {
			add(ids, exactMatchScore)
		}
		if !fuzzy {
			continue
		}
		tokenLen := utf8.RuneCountInString(token)
		threshold := fuzzyThreshold(tokenLen)
		for _, term := range s.terms {
			if term == token {
				continue
			}
			if diff := utf8.RuneCountInString(term) - tokenLen; diff > threshold || -diff > threshold {
				continue
			}
			if Levenshtein(token, term) <= threshold {
				add(s.index[term], fuzzyMatchScore)
			}
		}
	}
	return scores
}

func filterCandidates(candidates []scoredChannel, opts SearchOptions) []scoredChannel {
	if opts.Category == "" && opts.Country == "" && opts.Language == "" && opts.Source == "" {
		return candidates
	}
	filtered := candidates[:0]
	for _, c := range candidates {
		if !facetMatches(c.channel.Category, opts.Category) ||
			!facetMatches(c.channel.Country, opts.Country) ||
			!facetMatches(c.channel.Language, opts.Language) ||
			!facetMatches(c.channel.Source, opts.Source) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func facetMatches(value, filter string) bool {
	return filter == "" || strings.EqualFold(value, filter)
}

// sortCandidates orders candidates in place. Ties keep snapshot order.
func sortCandidates(candidates []scoredChannel, sortBy string) {
	switch sortBy {
	case SortName:
		collator := collate.New(language.Und)
		sort.SliceStable(candidates, func(i, j int) bool {
			return collator.CompareString(candidates[i].channel.Name, candidates[j].channel.Name) < 0
		})
	case SortRecent:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].channel.enrichedAtMillis() > candidates[j].channel.enrichedAtMillis()
		})
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
	}
}

package channelsearch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(year int, month time.Month) *time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func fixtureChannels() []Channel {
	return []Channel{
		{
			ID: "bbc-news", Name: "BBC News", Category: "News", Country: "UK", Language: "English",
			Description: "British news channel", Source: "iptv",
			Metadata: &Metadata{Platform: "tv", TvgName: "BBCNews.uk", EnrichedAt: ts(2024, time.June)},
		},
		{
			ID: "sky-news", Name: "Sky News", Category: "News", Country: "UK", Language: "English",
			Description: "24 hour news", Source: "youtube",
			Metadata: &Metadata{Handle: "@skynews", EnrichedAt: ts(2025, time.January)},
		},
		{
			ID: "cnn", Name: "CNN International", Category: "News", Country: "US", Language: "English",
			Description: "Cable news network", Source: "iptv",
		},
		{
			ID: "espn", Name: "ESPN", Category: "Sports", Country: "US", Language: "English",
			Description: "Sports_center live-scores", Source: "iptv",
			Metadata: &Metadata{EnrichedAt: ts(2024, time.January)},
		},
		{
			ID: "tf1", Name: "TF1", Category: "Entertainment", Country: "FR", Language: "French",
			Description: "Chaîne généraliste", Source: "iptv",
		},
		{ID: "arte", Name: "arte", Category: "Culture", Country: "FR"},
	}
}

func resultIDs(result SearchResult) []string {
	ids := make([]string, 0, len(result.Results))
	for _, ch := range result.Results {
		ids = append(ids, ch.ID)
	}
	return ids
}

func TestIndexContainsEveryFieldTerm(t *testing.T) {
	channels := fixtureChannels()
	cs := New(channels)
	terms := cs.Terms()

	for _, ch := range channels {
		for _, field := range ch.indexedText() {
			for _, token := range Tokenize(field) {
				require.Contains(t, terms, token, "term %q of channel %s", token, ch.ID)
				assert.Contains(t, terms[token], ch.ID)
			}
		}
	}
	assert.Contains(t, terms["bbcnews"], "bbc-news")
	assert.Contains(t, terms["@skynews"], "sky-news")
	assert.Contains(t, terms["center"], "espn")
	assert.NotContains(t, terms, "iptv", "source is not an indexed field")
}

func TestUpdateChannelsIsIdempotent(t *testing.T) {
	channels := fixtureChannels()
	cs := New(channels)
	first := cs.Terms()

	cs.UpdateChannels(channels)
	assert.Equal(t, first, cs.Terms())

	reversed := make([]Channel, len(channels))
	for i, ch := range channels {
		reversed[len(channels)-1-i] = ch
	}
	cs.UpdateChannels(reversed)
	assert.Equal(t, first, cs.Terms())
}

func TestUpdateChannelsReplacesSnapshot(t *testing.T) {
	cs := New(fixtureChannels())
	gen := cs.Generation()

	cs.UpdateChannels([]Channel{{ID: "nhk", Name: "NHK World", Category: "News", Country: "JP"}})

	assert.Equal(t, gen+1, cs.Generation())
	assert.Equal(t, 1, cs.Len())
	assert.Empty(t, resultIDs(cs.Search("bbc", SearchOptions{})))
	assert.Equal(t, []string{"nhk"}, resultIDs(cs.Search("world", SearchOptions{})))
}

func TestSnapshotIsolatedFromCallerSlice(t *testing.T) {
	channels := fixtureChannels()
	cs := New(channels)
	channels[0].Name = "Mutated"

	ch, ok := cs.Channel("bbc-news")
	require.True(t, ok)
	assert.Equal(t, "BBC News", ch.Name)
}

func TestDuplicateIDsKeepFirstChannel(t *testing.T) {
	cs := New([]Channel{
		{ID: "bbc", Name: "BBC News", Category: "News"},
		{ID: "bbc", Name: "Zebra Nature", Category: "Documentary"},
		{ID: "cnn", Name: "CNN"},
	})

	assert.Equal(t, 2, cs.Len())
	assert.Zero(t, cs.Search("zebra", SearchOptions{Fuzzy: Bool(false)}).Total)
	assert.Equal(t, []string{"bbc"}, resultIDs(cs.Search("news", SearchOptions{})))
	_, ok := cs.Terms()["documentary"]
	assert.False(t, ok)

	ch, ok := cs.Channel("bbc")
	require.True(t, ok)
	assert.Equal(t, "BBC News", ch.Name)
	assert.Equal(t, []FacetCount{{Name: "News", Count: 1}, {Name: "Unknown", Count: 1}}, cs.GetCategories())
}

func TestEmptyQueryMatchesAll(t *testing.T) {
	cs := New(fixtureChannels())

	all := cs.Search("", SearchOptions{})
	assert.Equal(t, 6, all.Total)
	assert.Equal(t, []string{"bbc-news", "sky-news", "cnn", "espn", "tf1", "arte"}, resultIDs(all))
	assert.Equal(t, all, cs.Search("   ", SearchOptions{}))

	filtered := cs.Search("", SearchOptions{Category: "news", SortBy: SortName, Limit: 2})
	assert.Equal(t, filtered, cs.Search(" \t", SearchOptions{Category: "news", SortBy: SortName, Limit: 2}))
	assert.Equal(t, 3, filtered.Total)
	assert.Len(t, filtered.Results, 2)
}

func TestExactTermScoresTen(t *testing.T) {
	cs := New(fixtureChannels())

	result := cs.Search("bbc", SearchOptions{Fuzzy: Bool(false)})
	assert.Equal(t, []string{"bbc-news"}, resultIDs(result))

	scores := cs.current.Load().score(Tokenize("bbc"), false)
	assert.Equal(t, map[string]int{"bbc-news": 10}, scores)
}

func TestFuzzyMatching(t *testing.T) {
	cs := New(fixtureChannels())

	fuzzy := cs.Search("nws", SearchOptions{Fuzzy: Bool(true)})
	assert.ElementsMatch(t, []string{"bbc-news", "sky-news", "cnn"}, resultIDs(fuzzy))

	defaulted := cs.Search("nws", SearchOptions{})
	assert.Equal(t, fuzzy, defaulted, "fuzzy is enabled by default")

	exact := cs.Search("nws", SearchOptions{Fuzzy: Bool(false)})
	assert.Equal(t, 0, exact.Total)
	assert.Empty(t, exact.Results)
}

func TestScoresAccumulateAcrossTokens(t *testing.T) {
	cs := New(fixtureChannels())

	scores := cs.current.Load().score(Tokenize("bbc nws"), true)
	assert.Equal(t, 15, scores["bbc-news"])
	assert.Equal(t, 5, scores["sky-news"])
	assert.Equal(t, 5, scores["cnn"])

	result := cs.Search("bbc nws", SearchOptions{})
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "bbc-news", result.Results[0].ID)
	assert.Equal(t, []string{"bbc-news", "sky-news", "cnn"}, resultIDs(result))
}

func TestFuzzyPassSkipsExactTerm(t *testing.T) {
	cs := New([]Channel{
		{ID: "1", Name: "News Today"},
		{ID: "2", Name: "Nws"},
		{ID: "3", Name: "Newz Newt"},
	})

	scores := cs.current.Load().score([]string{"news"}, true)
	assert.Equal(t, map[string]int{"1": 10, "2": 5, "3": 10}, scores,
		"each fuzzy term adds 5, the exact term adds only 10")
}

func TestShortQueryTokensMatchNothing(t *testing.T) {
	cs := New(fixtureChannels())

	result := cs.Search("a", SearchOptions{})
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Results)
}

func TestFilterComposition(t *testing.T) {
	cs := New(fixtureChannels())

	both := cs.Search("", SearchOptions{Category: "News", Country: "uk"})
	assert.Equal(t, []string{"bbc-news", "sky-news"}, resultIDs(both))

	news := cs.Search("", SearchOptions{Category: "NEWS"})
	uk := cs.Search("", SearchOptions{Country: "UK"})
	var intersection []string
	for _, id := range resultIDs(news) {
		for _, other := range resultIDs(uk) {
			if id == other {
				intersection = append(intersection, id)
			}
		}
	}
	assert.Equal(t, intersection, resultIDs(both))

	assert.Equal(t, []string{"sky-news"}, resultIDs(cs.Search("news", SearchOptions{Source: "YouTube"})))
	assert.Equal(t, []string{"tf1"}, resultIDs(cs.Search("", SearchOptions{Language: "french"})))
	assert.Empty(t, resultIDs(cs.Search("", SearchOptions{Country: "DE"})))
}

func TestSortByName(t *testing.T) {
	cs := New(fixtureChannels())

	result := cs.Search("", SearchOptions{SortBy: SortName})
	names := make([]string, 0, len(result.Results))
	for _, ch := range result.Results {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"arte", "BBC News", "CNN International", "ESPN", "Sky News", "TF1"}, names)
}

func TestSortByRecent(t *testing.T) {
	cs := New(fixtureChannels())

	result := cs.Search("", SearchOptions{SortBy: SortRecent})
	assert.Equal(t, []string{"sky-news", "bbc-news", "espn", "cnn", "tf1", "arte"}, resultIDs(result))
}

func TestPagination(t *testing.T) {
	channels := make([]Channel, 25)
	for i := range channels {
		channels[i] = Channel{ID: fmt.Sprintf("ch-%02d", i), Name: fmt.Sprintf("News Channel %02d", i)}
	}
	cs := New(channels)

	full := cs.Search("news", SearchOptions{Limit: 100})
	require.Equal(t, 25, full.Total)

	page := cs.Search("news", SearchOptions{Limit: 10, Offset: 10})
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 10, page.Offset)
	assert.Equal(t, full.Results[10:20], page.Results)

	for _, tc := range []struct{ limit, offset int }{{10, 0}, {10, 20}, {7, 21}, {50, 25}, {1, 24}} {
		p := cs.Search("news", SearchOptions{Limit: tc.limit, Offset: tc.offset})
		assert.LessOrEqual(t, len(p.Results), tc.limit)
		assert.LessOrEqual(t, len(p.Results)+tc.offset, p.Total)
		assert.Equal(t, tc.offset, p.Offset)
	}

	past := cs.Search("news", SearchOptions{Limit: 10, Offset: 40})
	assert.Empty(t, past.Results)
	assert.Equal(t, 25, past.Total)
	assert.Equal(t, 25, past.Offset)
	assert.LessOrEqual(t, len(past.Results)+past.Offset, past.Total)

	none := cs.Search("zzzz", SearchOptions{Offset: 5})
	assert.Zero(t, none.Total)
	assert.Zero(t, none.Offset)
}

func TestPaginationDefaults(t *testing.T) {
	channels := make([]Channel, 60)
	for i := range channels {
		channels[i] = Channel{ID: fmt.Sprintf("ch-%d", i), Name: "Music"}
	}
	cs := New(channels)

	result := cs.Search("music", SearchOptions{Offset: -3})
	assert.Equal(t, 60, result.Total)
	assert.Equal(t, DefaultLimit, result.Limit)
	assert.Equal(t, 0, result.Offset)
	assert.Len(t, result.Results, DefaultLimit)
}

func TestValidSort(t *testing.T) {
	for _, s := range []string{"", SortRelevance, SortName, SortRecent} {
		assert.True(t, ValidSort(s), s)
	}
	assert.False(t, ValidSort("popularity"))
}

func TestConcurrentSearchDuringRebuild(t *testing.T) {
	small := fixtureChannels()
	large := make([]Channel, 0, 200)
	for i := 0; i < 200; i++ {
		large = append(large, Channel{ID: fmt.Sprintf("x-%d", i), Name: "Generic Channel"})
	}
	cs := New(small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				total := cs.Search("", SearchOptions{}).Total
				if total != len(small) && total != len(large) {
					t.Errorf("observed partial snapshot with %d channels", total)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			cs.UpdateChannels(large)
		} else {
			cs.UpdateChannels(small)
		}
	}
	close(stop)
	wg.Wait()
}

func BenchmarkBuildIndex(b *testing.B) {
	channels := benchmarkChannels(20000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildSnapshot(channels, 1)
	}
}

func BenchmarkFuzzySearch(b *testing.B) {
	cs := New(benchmarkChannels(20000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cs.Search("sprts nws", SearchOptions{})
	}
}

func benchmarkChannels(n int) []Channel {
	categories := []string{"News", "Sports", "Music", "Kids", "Movies"}
	countries := []string{"UK", "US", "FR", "DE", "IN"}
	channels := make([]Channel, n)
	for i := range channels {
		channels[i] = Channel{
			ID:          fmt.Sprintf("ch-%d", i),
			Name:        fmt.Sprintf("%s %s %d", countries[i%5], categories[i%5], i),
			Category:    categories[i%5],
			Country:     countries[(i/5)%5],
			Language:    "English",
			Description: fmt.Sprintf("channel number %d streaming %s", i, categories[(i/3)%5]),
			Source:      "iptv",
		}
	}
	return channels
}

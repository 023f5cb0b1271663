package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lets-connect/channel-search/internal/catalog"
	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/internal/searcher/cache"
	"github.com/lets-connect/channel-search/pkg/config"
	apperrors "github.com/lets-connect/channel-search/pkg/errors"
	"github.com/lets-connect/channel-search/pkg/metrics"
	pkgredis "github.com/lets-connect/channel-search/pkg/redis"
)

func testChannels() []channelsearch.Channel {
	return []channelsearch.Channel{
		{ID: "bbc-news", Name: "BBC News", Category: "News", Country: "UK", Language: "English", Source: "iptv"},
		{ID: "sky-news", Name: "Sky News", Category: "News", Country: "UK", Language: "English", Source: "youtube"},
		{ID: "cnn", Name: "CNN", Category: "News", Country: "US", Language: "English", Source: "iptv"},
		{ID: "espn", Name: "ESPN", Category: "Sports", Country: "US", Language: "English", Source: "iptv"},
	}
}

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) ReloadFor(ctx context.Context, reason string) (catalog.IndexRebuiltEvent, error) {
	f.calls++
	if f.err != nil {
		return catalog.IndexRebuiltEvent{}, f.err
	}
	return catalog.IndexRebuiltEvent{Reason: reason, Generation: 2, Channels: 4, Terms: 9, Duration: time.Millisecond}, nil
}

type server struct {
	mux     *http.ServeMux
	search  *channelsearch.ChannelSearch
	metrics *metrics.Metrics
}

func newServer(t *testing.T, searchCache *cache.SearchCache, reloader Reloader) *server {
	t.Helper()
	search := channelsearch.New(testChannels())
	m := metrics.New(prometheus.NewRegistry())
	h := New(search, searchCache, reloader, nil, m, config.SearchConfig{DefaultLimit: 2, MaxResults: 3})
	mux := http.NewServeMux()
	h.Register(mux)
	return &server{mux: mux, search: search, metrics: m}
}

func (s *server) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSearchAppliesOptions(t *testing.T) {
	s := newServer(t, nil, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/channels/search?q=news&country=uk&sortBy=name")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	result := decode[channelsearch.SearchResult](t, rec)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Limit, "configured default limit")
	require.Len(t, result.Results, 2)
	assert.Equal(t, "bbc-news", result.Results[0].ID)
	assert.Equal(t, "sky-news", result.Results[1].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestSearchEmptyQueryPaginates(t *testing.T) {
	s := newServer(t, nil, nil)

	result := decode[channelsearch.SearchResult](t, s.do(t, http.MethodGet, "/api/v1/channels/search?limit=100&offset=1"))
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Limit, "limit is capped at maxResults")
	assert.Equal(t, 1, result.Offset)
	assert.Len(t, result.Results, 3)

	result = decode[channelsearch.SearchResult](t, s.do(t, http.MethodGet, "/api/v1/channels/search?q=nws&fuzzy=false"))
	assert.Zero(t, result.Total)
	assert.NotNil(t, result.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchRejectsInvalidParameters(t *testing.T) {
	s := newServer(t, nil, nil)

	for _, target := range []string{
		"/api/v1/channels/search?limit=0",
		"/api/v1/channels/search?limit=ten",
		"/api/v1/channels/search?offset=-1",
		"/api/v1/channels/search?sortBy=popularity",
		"/api/v1/channels/search?fuzzy=maybe",
		"/api/v1/channels/suggestions?q=ne&limit=-2",
		"/api/v1/channels/trending?limit=x",
		"/api/v1/channels/espn/similar?limit=0",
	} {
		rec := s.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestSearchUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Addr: mr.Addr(), CacheTTL: time.Minute}
	client, err := pkgredis.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	searchCache := cache.New(client, cfg, nil)
	s := newServer(t, searchCache, nil)

	first := decode[channelsearch.SearchResult](t, s.do(t, http.MethodGet, "/api/v1/channels/search?q=espn"))
	second := decode[channelsearch.SearchResult](t, s.do(t, http.MethodGet, "/api/v1/channels/search?q=ESPN"))
	assert.Equal(t, first, second)

	hits, misses := searchCache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	stats := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/v1/cache/stats"))
	assert.Equal(t, "50.0%", stats["hit_rate"])

	rec := s.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, mr.Keys())
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	s := newServer(t, nil, nil)

	assert.JSONEq(t, `{"status":"disabled"}`, s.do(t, http.MethodGet, "/api/v1/cache/stats").Body.String())
	rec := s.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"caching is disabled"}`, rec.Body.String())
}

func TestFacetEndpoints(t *testing.T) {
	s := newServer(t, nil, nil)

	categories := decode[[]channelsearch.FacetCount](t, s.do(t, http.MethodGet, "/api/v1/channels/categories"))
	assert.Equal(t, []channelsearch.FacetCount{{Name: "News", Count: 3}, {Name: "Sports", Count: 1}}, categories)

	countries := decode[[]channelsearch.FacetCount](t, s.do(t, http.MethodGet, "/api/v1/channels/countries"))
	assert.Len(t, countries, 2)

	languages := decode[[]channelsearch.FacetCount](t, s.do(t, http.MethodGet, "/api/v1/channels/languages"))
	assert.Equal(t, []channelsearch.FacetCount{{Name: "English", Count: 4}}, languages)

	stats := decode[channelsearch.Stats](t, s.do(t, http.MethodGet, "/api/v1/channels/stats"))
	assert.Equal(t, 4, stats.TotalChannels)
	assert.Equal(t, map[string]int{"iptv": 3, "youtube": 1}, stats.Sources)

	trending := decode[[]channelsearch.TrendingSearch](t, s.do(t, http.MethodGet, "/api/v1/channels/trending?limit=1"))
	assert.Equal(t, []channelsearch.TrendingSearch{{Text: "News - UK", Count: 2}}, trending)

	suggestions := decode[[]channelsearch.Suggestion](t, s.do(t, http.MethodGet, "/api/v1/channels/suggestions?q=ne"))
	assert.Equal(t, []channelsearch.Suggestion{{Text: "news", Count: 3}}, suggestions)
}

func TestChannelAndSimilar(t *testing.T) {
	s := newServer(t, nil, nil)

	ch := decode[channelsearch.Channel](t, s.do(t, http.MethodGet, "/api/v1/channels/cnn"))
	assert.Equal(t, "CNN", ch.Name)

	rec := s.do(t, http.MethodGet, "/api/v1/channels/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"channel \"missing\" not found"}`, rec.Body.String())

	similar := decode[[]channelsearch.Channel](t, s.do(t, http.MethodGet, "/api/v1/channels/bbc-news/similar"))
	require.Len(t, similar, 1)
	assert.Equal(t, "sky-news", similar[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/channels/missing/similar")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReload(t *testing.T) {
	reloader := &fakeReloader{}
	s := newServer(t, nil, reloader)

	rec := s.do(t, http.MethodPost, "/api/v1/catalog/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "reloaded", body["status"])
	assert.Equal(t, 2.0, body["generation"])

	reloader.err = apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog reload failed: boom")
	rec = s.do(t, http.MethodPost, "/api/v1/catalog/reload")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"catalog reload failed: boom"}`, rec.Body.String())

	reloader.err = errors.New("unexpected")
	rec = s.do(t, http.MethodPost, "/api/v1/catalog/reload")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 3, reloader.calls)

	rec = newServer(t, nil, nil).do(t, http.MethodPost, "/api/v1/catalog/reload")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// Package handler exposes the channel index over HTTP. Query parameters map
// directly onto channelsearch options; invalid parameters are rejected with
// 400 before the index is touched.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lets-connect/channel-search/internal/analytics"
	"github.com/lets-connect/channel-search/internal/catalog"
	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/internal/searcher/cache"
	"github.com/lets-connect/channel-search/pkg/config"
	apperrors "github.com/lets-connect/channel-search/pkg/errors"
	"github.com/lets-connect/channel-search/pkg/logger"
	"github.com/lets-connect/channel-search/pkg/metrics"
	"github.com/lets-connect/channel-search/pkg/middleware"
)

// Reloader rebuilds the index from the catalog.
type Reloader interface {
	ReloadFor(ctx context.Context, reason string) (catalog.IndexRebuiltEvent, error)
}

type Handler struct {
	search       *channelsearch.ChannelSearch
	cache        *cache.SearchCache
	reloader     Reloader
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. Every dependency but search may be nil.
func New(search *channelsearch.ChannelSearch, searchCache *cache.SearchCache, reloader Reloader,
	collector *analytics.Collector, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		search:       search,
		cache:        searchCache,
		reloader:     reloader,
		collector:    collector,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/channels/search", h.Search)
	mux.HandleFunc("GET /api/v1/channels/suggestions", h.Suggestions)
	mux.HandleFunc("GET /api/v1/channels/categories", h.Categories)
	mux.HandleFunc("GET /api/v1/channels/countries", h.Countries)
	mux.HandleFunc("GET /api/v1/channels/languages", h.Languages)
	mux.HandleFunc("GET /api/v1/channels/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/channels/trending", h.Trending)
	mux.HandleFunc("GET /api/v1/channels/{id}", h.Channel)
	mux.HandleFunc("GET /api/v1/channels/{id}/similar", h.Similar)
	mux.HandleFunc("POST /api/v1/catalog/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	opts, err := h.parseSearchOptions(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	generation := h.search.Generation()
	result, cacheHit := h.cache.GetOrCompute(ctx, query, opts, generation, func() channelsearch.SearchResult {
		return h.search.Search(query, opts)
	})

	latency := time.Since(start)
	h.observeSearch(result, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"total", result.Total,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:  analytics.EventSearch,
			Query: query,
			Terms: channelsearch.Tokenize(query),
			Filters: analytics.SearchFilters{
				Category: opts.Category,
				Country:  opts.Country,
				Language: opts.Language,
				Source:   opts.Source,
				SortBy:   opts.SortBy,
			},
			Fuzzy:      opts.Fuzzy == nil || *opts.Fuzzy,
			Total:      result.Total,
			Returned:   len(result.Results),
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Generation: generation,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseSearchOptions(r *http.Request) (channelsearch.SearchOptions, error) {
	q := r.URL.Query()
	opts := channelsearch.SearchOptions{
		Category: q.Get("category"),
		Country:  q.Get("country"),
		Language: q.Get("language"),
		Source:   q.Get("source"),
		SortBy:   q.Get("sortBy"),
	}
	if !channelsearch.ValidSort(opts.SortBy) {
		return opts, apperrors.InvalidInputf("sortBy must be one of %s, %s, %s",
			channelsearch.SortRelevance, channelsearch.SortName, channelsearch.SortRecent)
	}
	limit, err := h.parseLimit(q.Get("limit"), h.defaultLimit)
	if err != nil {
		return opts, err
	}
	opts.Limit = limit
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, apperrors.InvalidInputf("offset must be a non-negative integer")
		}
		opts.Offset = offset
	}
	if raw := q.Get("fuzzy"); raw != "" {
		fuzzy, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, apperrors.InvalidInputf("fuzzy must be true or false")
		}
		opts.Fuzzy = channelsearch.Bool(fuzzy)
	}
	return opts, nil
}

// parseLimit returns fallback for an empty value and caps at maxResults.
func (h *Handler) parseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.InvalidInputf("limit must be a positive integer")
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) observeSearch(result channelsearch.SearchResult, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if result.Total == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	switch {
	case h.cache == nil:
		cacheStatus = "disabled"
	case cacheHit:
		cacheStatus = "hit"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(result.Total))
}

func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.search.GetSuggestions(r.URL.Query().Get("q"), limit))
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.search.GetCategories())
}

func (h *Handler) Countries(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.search.GetCountries())
}

func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.search.GetLanguages())
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.search.GetStats())
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.search.GetTrendingSearches(limit))
}

func (h *Handler) Channel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch, ok := h.search.Channel(id)
	if !ok {
		h.writeErr(w, apperrors.Newf(apperrors.ErrChannelNotFound, http.StatusNotFound, "channel %q not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, ch)
}

// Similar lists channels sharing the category and country of {id}. An
// unknown ID yields an empty list, not 404.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.search.FindSimilar(r.PathValue("id"), limit))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeErr(w, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog reload is not configured"))
		return
	}
	event, err := h.reloader.ReloadFor(r.Context(), catalog.ReasonManual)
	if err != nil {
		logger.FromContext(r.Context()).Error("manual catalog reload failed", "error", err)
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": event.Generation,
		"channels":   event.Channels,
		"terms":      event.Terms,
		"durationMs": event.Duration.Milliseconds(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":       hits,
		"misses":     misses,
		"total":      total,
		"hit_rate":   fmt.Sprintf("%.1f%%", hitRate),
		"generation": h.search.Generation(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeErr(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeErr(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.Message(err)})
}

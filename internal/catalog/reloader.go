package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/pkg/config"
	apperrors "github.com/lets-connect/channel-search/pkg/errors"
	"github.com/lets-connect/channel-search/pkg/metrics"
	"github.com/lets-connect/channel-search/pkg/resilience"
	"github.com/lets-connect/channel-search/pkg/tracing"
)

// Source produces a full channel snapshot.
type Source interface {
	LoadChannels(ctx context.Context) ([]channelsearch.Channel, error)
}

// Invalidator drops cached responses computed from an older snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reload reasons reported in logs and IndexRebuiltEvent.
const (
	ReasonStartup   = "startup"
	ReasonScheduled = "scheduled"
	ReasonManual    = "manual"
	ReasonEvent     = "catalog-event"
)

// IndexRebuiltEvent describes a successful reload.
type IndexRebuiltEvent struct {
	Reason     string        `json:"reason"`
	Generation uint64        `json:"generation"`
	Channels   int           `json:"channels"`
	Terms      int           `json:"terms"`
	Duration   time.Duration `json:"duration"`
}

// Reloader refreshes a ChannelSearch from a Source. Loads are retried with
// backoff behind a circuit breaker; a failed reload leaves the previous
// snapshot serving.
type Reloader struct {
	search      *channelsearch.ChannelSearch
	source      Source
	cache       Invalidator
	metrics     *metrics.Metrics
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryConfig
	loadTimeout time.Duration
	onRebuilt   func(IndexRebuiltEvent)
	mu          sync.Mutex
	logger      *slog.Logger
}

// NewReloader creates a Reloader. cache and m may be nil.
func NewReloader(search *channelsearch.ChannelSearch, source Source, cache Invalidator, m *metrics.Metrics, cfg config.CatalogConfig) *Reloader {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  cfg.RetryAttempts,
		InitialDelay: cfg.RetryDelay,
		Retryable: func(err error) bool {
			return !errors.Is(err, resilience.ErrCircuitOpen)
		},
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, state resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
		}
		retryCfg.OnRetry = func(int, error, time.Duration) {
			m.CatalogLoadRetries.Inc()
		}
	}
	return &Reloader{
		search:      search,
		source:      source,
		cache:       cache,
		metrics:     m,
		breaker:     resilience.NewCircuitBreaker("catalog-source", cbCfg),
		retry:       retryCfg,
		loadTimeout: cfg.LoadTimeout,
		logger:      slog.Default().With("component", "catalog-reloader"),
	}
}

// OnRebuilt registers fn to be called after every successful reload.
func (r *Reloader) OnRebuilt(fn func(IndexRebuiltEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRebuilt = fn
}

// Reload fetches a fresh snapshot and swaps it into the index.
func (r *Reloader) Reload(ctx context.Context) error {
	_, err := r.reload(ctx, ReasonManual)
	return err
}

// ReloadFor is Reload with an explicit reason, returning what was built.
func (r *Reloader) ReloadFor(ctx context.Context, reason string) (IndexRebuiltEvent, error) {
	return r.reload(ctx, reason)
}

func (r *Reloader) reload(ctx context.Context, reason string) (IndexRebuiltEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "catalog-reload")
	span.SetAttr("reason", reason)
	defer func() {
		span.End()
		span.Log(r.logger)
	}()

	_, loadSpan := tracing.StartChildSpan(ctx, "load")
	channels, err := resilience.RetryValue(ctx, "catalog-load", r.retry, func() ([]channelsearch.Channel, error) {
		var loaded []channelsearch.Channel
		err := r.breaker.Execute(func() error {
			var err error
			loaded, err = resilience.WithTimeout(ctx, r.loadTimeout, "catalog-load", r.source.LoadChannels)
			return err
		})
		return loaded, err
	})
	loadSpan.End()
	if err != nil {
		span.SetAttr("error", err.Error())
		r.observe("failure", start)
		r.logger.Error("catalog reload failed, keeping current snapshot",
			"reason", reason,
			"generation", r.search.Generation(),
			"error", err,
		)
		return IndexRebuiltEvent{}, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable,
			fmt.Sprintf("catalog reload failed: %v", err))
	}
	if len(channels) == 0 && r.search.Len() > 0 {
		r.logger.Warn("catalog source returned no channels", "reason", reason)
	}

	_, indexSpan := tracing.StartChildSpan(ctx, "index")
	r.search.UpdateChannels(channels)
	indexSpan.SetAttr("channels", len(channels))
	indexSpan.End()
	event := IndexRebuiltEvent{
		Reason:     reason,
		Generation: r.search.Generation(),
		Channels:   r.search.Len(),
		Terms:      r.search.TermCount(),
		Duration:   time.Since(start),
	}
	if r.cache != nil {
		_, invalidateSpan := tracing.StartChildSpan(ctx, "invalidate-cache")
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
		invalidateSpan.End()
	}
	r.observe("success", start)
	if r.metrics != nil {
		r.metrics.IndexedChannels.Set(float64(event.Channels))
		r.metrics.IndexedTerms.Set(float64(event.Terms))
		r.metrics.IndexGeneration.Set(float64(event.Generation))
	}
	r.logger.Info("catalog reloaded",
		"reason", reason,
		"generation", event.Generation,
		"channels", event.Channels,
		"terms", event.Terms,
		"duration", event.Duration.Round(time.Millisecond),
	)
	if r.onRebuilt != nil {
		r.onRebuilt(event)
	}
	return event, nil
}

func (r *Reloader) observe(status string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.CatalogReloadsTotal.WithLabelValues(status).Inc()
	r.metrics.CatalogReloadDuration.Observe(time.Since(start).Seconds())
}

// Start reloads every interval until ctx is cancelled. A non-positive
// interval disables periodic reloads.
func (r *Reloader) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Info("periodic catalog reload disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.Info("periodic catalog reload started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("periodic catalog reload stopped")
			return
		case <-ticker.C:
			// Failures are logged inside reload; the next tick retries.
			r.reload(ctx, ReasonScheduled)
		}
	}
}

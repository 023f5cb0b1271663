package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lets-connect/channel-search/internal/analytics"
	"github.com/lets-connect/channel-search/internal/analytics/aggregator"
	"github.com/lets-connect/channel-search/internal/catalog"
	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/internal/searcher/cache"
	"github.com/lets-connect/channel-search/internal/searcher/handler"
	"github.com/lets-connect/channel-search/pkg/config"
	"github.com/lets-connect/channel-search/pkg/health"
	"github.com/lets-connect/channel-search/pkg/kafka"
	"github.com/lets-connect/channel-search/pkg/logger"
	"github.com/lets-connect/channel-search/pkg/metrics"
	"github.com/lets-connect/channel-search/pkg/middleware"
	"github.com/lets-connect/channel-search/pkg/postgres"
	"github.com/lets-connect/channel-search/pkg/ratelimit"
	pkgredis "github.com/lets-connect/channel-search/pkg/redis"
)

const analyticsSnapshotInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting channel search service",
		"port", cfg.Server.Port,
		"catalog_source", cfg.Catalog.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Catalog.Source == config.CatalogSourcePostgres {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDown))
	}

	var source catalog.Source
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		store := catalog.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare catalog schema", "error", err)
			os.Exit(1)
		}
		source = store
	case config.CatalogSourceFile:
		source = catalog.FileSource{Path: cfg.Catalog.FilePath}
	}

	var searchCache *cache.SearchCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		})
	} else {
		defer redisClient.Close()
		searchCache = cache.New(redisClient, cfg.Redis, m)
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	search := channelsearch.New(nil)
	checker.Register("channel_index", func(ctx context.Context) health.ComponentHealth {
		if n := search.Len(); n > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d channels, generation %d", n, search.Generation()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no channels indexed"}
	})

	var invalidator catalog.Invalidator
	if searchCache != nil {
		invalidator = searchCache
	}
	reloader := catalog.NewReloader(search, source, invalidator, m, cfg.Catalog)

	var collector *analytics.Collector
	var agg *analytics.Aggregator
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(analyticsProducer, 10000, m)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		agg = analytics.NewAggregator()
		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "", analytics.HandleEvent(agg))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		if db != nil {
			snapshots := aggregator.NewStore(db)
			if err := snapshots.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				snapshots.StartPeriodicSave(ctx, agg, analyticsSnapshotInterval)
			}
		}

		// Every instance must see every catalog event, so each gets its own
		// consumer group.
		hostname, _ := os.Hostname()
		catalogGroup := fmt.Sprintf("%s-catalog-%s", cfg.Kafka.ConsumerGroup, hostname)
		catalogConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdated, catalogGroup, catalog.HandleCatalogEvent(reloader))
		go func() {
			if err := catalogConsumer.Start(ctx); err != nil {
				slog.Error("catalog consumer error", "error", err)
			}
		}()
		slog.Info("catalog event consumer started", "topic", cfg.Kafka.Topics.CatalogUpdated, "group", catalogGroup)

		reloader.OnRebuilt(func(e catalog.IndexRebuiltEvent) {
			collector.Track(analytics.ReindexEvent{
				Type:       analytics.EventReindex,
				Reason:     e.Reason,
				Generation: e.Generation,
				Channels:   e.Channels,
				Terms:      e.Terms,
				DurationMs: e.Duration.Milliseconds(),
				Timestamp:  time.Now().UTC(),
			})
		})
	}

	if _, err := reloader.ReloadFor(ctx, catalog.ReasonStartup); err != nil {
		slog.Warn("initial catalog load failed, serving an empty index until the next reload", "error", err)
	}
	go reloader.Start(ctx, cfg.Catalog.RefreshInterval)

	h := handler.New(search, searchCache, reloader, collector, m, cfg.Search)
	analyticsH := analytics.NewHandler(agg)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig()),
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Close()
		chain = append(chain, middleware.RateLimit(limiter))
	}
	chain = append(chain,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("channel search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("channel search service stopped")
}

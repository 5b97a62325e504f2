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

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/handler"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/runs"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ranking service",
		"port", cfg.Server.Port,
		"damping", cfg.Rank.DefaultDamping,
		"max_nodes", cfg.Rank.MaxNodes,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()
	var sinks []ranking.Sink

	var (
		responseCache *cache.Cache[ranking.Response]
		cacheAdmin    handler.CacheAdmin
	)
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, response caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			responseCache = cache.New[ranking.Response](redisClient, cfg.Redis.CacheTTL, func(hit bool) {
				if hit {
					m.CacheHitsTotal.Inc()
				} else {
					m.CacheMissesTotal.Inc()
				}
			})
			cacheAdmin = responseCache
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("response cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var (
		store     *runs.Store
		runLister handler.RunLister
	)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, run history disabled", "error", err)
		} else {
			defer db.Close()
			breaker := resilience.NewCircuitBreaker("rank-runs", resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, from, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			store = runs.NewStore(db, breaker)
			if err := store.Migrate(ctx); err != nil {
				slog.Error("failed to migrate run history", "error", err)
				os.Exit(1)
			}
			runLister = store
			sinks = append(sinks, store)
			checker.Register("postgres", health.PingCheck(store.Ping, false))
			slog.Info("run history enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		}
	}

	var aggregator *analytics.Aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.RankEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 0, 0)
		collector.Start(ctx)
		defer collector.Close()
		sinks = append(sinks, collector)
		slog.Info("analytics collector started", "topic", topic)

		var handle kafka.MessageHandler
		consumer := kafka.NewConsumer(cfg.Kafka, topic, func(ctx context.Context, key, value []byte) error {
			return handle(ctx, key, value)
		})
		aggregator = analytics.NewAggregator(consumer)
		handle = analytics.HandleEvent(aggregator)
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics aggregator started", "group", cfg.Kafka.ConsumerGroup)
	} else {
		aggregator = analytics.NewAggregator(nil)
		sinks = append(sinks, aggregator)
		slog.Info("kafka disabled, aggregating rank events in process")
	}

	c := crawler.New(cfg.Crawler, crawler.WithOutcomeHook(func(outcome string) {
		m.CrawlFetchesTotal.WithLabelValues(outcome).Inc()
	}))

	opts := []ranking.Option{
		ranking.WithCrawler(c),
		ranking.WithSinks(sinks...),
		ranking.WithMetrics(m),
	}
	if responseCache != nil {
		opts = append(opts, ranking.WithCache(responseCache))
	}
	svc := ranking.NewService(cfg.Rank, opts...)

	checker.Register("ranking_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("max %d nodes", cfg.Rank.MaxNodes)}
	})

	h := handler.New(svc, cacheAdmin, runLister)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		defer limiter.Stop()
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("ranking service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if store != nil {
		store.Wait()
	}
	slog.Info("ranking service stopped")
}

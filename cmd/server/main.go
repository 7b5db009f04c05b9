// Package main runs the market data API server: storage backend
// selection, price feed client, HTTP API and the websocket refresh
// loop.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"warp-markets/internal/api"
	"warp-markets/internal/observability"
	"warp-markets/internal/pricefeed"
	"warp-markets/internal/service"
	"warp-markets/internal/storage"
	chstore "warp-markets/internal/storage/clickhouse"
	"warp-markets/internal/storage/memory"
	"warp-markets/internal/storage/migrations"
	pgstore "warp-markets/internal/storage/postgres"
)

// marketStores bundles the three store interfaces one backend provides.
type marketStores struct {
	pools  storage.PoolStore
	traces storage.TraceStore
	swaps  storage.SwapStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("ADDR", ":8000"), "HTTP listen address")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (alternative backend)")
	feedURL := flag.String("feed-url", os.Getenv("PRICE_FEED_API"), "Price feed API base URL")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for rate caching (empty disables)")
	redisTTL := flag.Duration("redis-ttl", 30*time.Second, "Rate cache TTL")
	refreshInterval := flag.Duration("refresh-interval", 30*time.Second, "Websocket ticker refresh interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a database")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *feedURL == "" {
		logger.Fatal("--feed-url is required")
	}
	if !*useMemory && *clickhouseDSN == "" && *postgresDSN == "" {
		logger.Fatal("--clickhouse-dsn or --postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *clickhouseDSN, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	feed := buildFeed(ctx, *feedURL, *redisAddr, *redisTTL, logger)

	metrics := observability.NewMetrics("")
	market := service.NewMarket(service.Config{
		Pools:   stores.pools,
		Traces:  stores.traces,
		Swaps:   stores.swaps,
		Feed:    feed,
		Logger:  logger,
		Metrics: metrics,
	})

	broadcaster := api.NewBroadcaster(logger, metrics)
	server := api.NewServer(*addr, market, broadcaster, metrics, logger)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown: %v", err)
		}
	}()

	go refreshLoop(ctx, market, broadcaster, metrics, *refreshInterval, logger)

	if err := server.Start(); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores selects the storage backend. ClickHouse is the primary
// analytical backend; Postgres is the fallback; memory serves tests and
// local runs.
func createStores(ctx context.Context, clickhouseDSN, postgresDSN string, useMemory bool) (*marketStores, func(), error) {
	if useMemory {
		store := memory.NewMarketStore()
		return &marketStores{pools: store, traces: store, swaps: store}, func() {}, nil
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, err
		}
		store := chstore.NewMarketStore(conn)
		return &marketStores{pools: store, traces: store, swaps: store}, func() { conn.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	store := pgstore.NewMarketStore(pool)
	return &marketStores{pools: store, traces: store, swaps: store}, func() { pool.Close() }, nil
}

// buildFeed creates the price feed source, wrapped with a Redis cache
// when configured.
func buildFeed(ctx context.Context, feedURL, redisAddr string, ttl time.Duration, logger *log.Logger) pricefeed.Source {
	client := pricefeed.NewClient(feedURL)
	if redisAddr == "" {
		return client
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	cached := pricefeed.NewCachedSource(client, rdb, ttl)
	if err := cached.Ping(ctx); err != nil {
		logger.Printf("Redis unavailable, rate caching disabled: %v", err)
		return client
	}
	logger.Printf("Rate caching enabled via %s (ttl %s)", redisAddr, ttl)
	return cached
}

// refreshLoop periodically rebuilds the full ticker set and pushes it
// to websocket clients.
func refreshLoop(ctx context.Context, market *service.Market, broadcaster *api.Broadcaster, metrics *observability.Metrics, interval time.Duration, logger *log.Logger) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			tickers, err := market.Tickers(ctx, nil)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Printf("ticker refresh: %v", err)
				}
				continue
			}
			broadcaster.BroadcastTickers(tickers)
			metrics.LastSuccessfulRefresh.SetToCurrentTime()
		}
	}
}

// envOr returns the environment value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

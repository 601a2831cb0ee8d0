package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-alpha-engine/internal/config"
	"token-alpha-engine/internal/domain"
	"token-alpha-engine/internal/observability"
	"token-alpha-engine/internal/orchestrator"
	"token-alpha-engine/internal/storage"
	chstore "token-alpha-engine/internal/storage/clickhouse"
	"token-alpha-engine/internal/storage/memory"
	"token-alpha-engine/internal/storage/migrations"
	pgstore "token-alpha-engine/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	wsEndpoint := flag.String("ws-endpoint", "", "Market data WebSocket endpoint (overrides config)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the snapshot sink (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config, empty uses config)")

	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *wsEndpoint != "" {
		cfg.Stream.Endpoint = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// Start metrics server
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	go observability.DefaultMetrics.TrackUptime(ctx, time.Second)

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, *useMemory)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) error {
	if !useMemory && cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN is required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var snapshotStore storage.SnapshotStore = memory.NewSnapshotStore()
	var patternStore storage.PatternStore = memory.NewPatternStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgres(ctx, pool); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}

		snapshotStore = pgstore.NewSnapshotStore(pool)
		patternStore = pgstore.NewPatternStore(pool)

		// ClickHouse, when configured, takes over the high-volume
		// snapshot append path; the pattern corpus stays in Postgres.
		if cfg.Storage.ClickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
			if err != nil {
				return fmt.Errorf("connect to clickhouse: %w", err)
			}
			defer conn.Close()

			if err := migrations.RunClickhouse(ctx, conn); err != nil {
				return fmt.Errorf("apply clickhouse migrations: %w", err)
			}

			snapshotStore = chstore.NewSnapshotStore(conn)
		}
	}

	// Orders go to stdout as JSON lines; an execution venue consumes them.
	encoder := json.NewEncoder(os.Stdout)
	sink := func(order domain.OrderIntent) {
		if err := encoder.Encode(order); err != nil {
			logger.Printf("Failed to encode order for %s: %v", order.Symbol, err)
		}
	}

	o, err := orchestrator.New(ctx, orchestrator.Options{
		Config:    cfg,
		Snapshots: snapshotStore,
		Patterns:  patternStore,
		OrderSink: sink,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Printf("Starting pipeline against %s", cfg.Stream.Endpoint)
	return o.Run(ctx)
}

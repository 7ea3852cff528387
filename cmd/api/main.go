package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"matchwire/internal/adapters/deadletter"
	"matchwire/internal/adapters/http/api"
	"matchwire/internal/adapters/store"
	"matchwire/internal/adapters/store/memstore"
	pebblestore "matchwire/internal/adapters/store/pebble"
	"matchwire/internal/adapters/store/postgres"
	"matchwire/internal/adapters/stream"
	streamkafka "matchwire/internal/adapters/stream/kafka"
	"matchwire/internal/adapters/stream/memlog"
	"matchwire/internal/config"
	"matchwire/internal/indexer"
	"matchwire/internal/ingest"
	"matchwire/internal/query"
	"matchwire/pkg/logger"
	"matchwire/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	storeMetricsInterval      = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Initialize logging
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Open the indexed store for the query path (and, in single-binary
	// mode, for the in-process indexer).
	st, err := newStore(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		return
	}
	defer func() { _ = st.Close() }()

	// The stream driver decides the topology: kafka publishes to brokers
	// and leaves consumption to the indexer binary; memlog keeps the whole
	// pipeline in this process.
	var (
		pub stream.Publisher
		idx *indexer.Service
	)
	switch cfg.StreamDriver {
	case "memlog":
		mlog := memlog.New(memlog.WithPartitions(cfg.MemlogPartitions))
		pub = mlog
		factory := func(context.Context) (stream.Consumer, error) {
			return mlog.NewConsumer(cfg.GroupID, memlog.WithMaxBatchSize(cfg.MaxBatchSize)), nil
		}
		idx = indexer.New(factory, st, deadletter.NewMemorySink(),
			indexer.WithWorkerCount(cfg.WorkerCount),
			indexer.WithRetry(cfg.StoreRetryMax, time.Duration(cfg.StoreRetryBaseMS)*time.Millisecond),
		)
	case "kafka":
		pub = streamkafka.NewPublisher(
			streamkafka.WithPublisherBrokers(cfg.Brokers),
			streamkafka.WithPublisherTopic(cfg.Topic),
		)
	}
	defer func() { _ = pub.Close() }()

	if idx != nil {
		if err := idx.Start(ctx); err != nil {
			loggerInstance.Error(ctx, "failed to start in-process indexer", logger.Error(err))
			return
		}
		defer idx.Stop()
	}

	// Optional idempotency layer for POST /events.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		loggerInstance.Info(ctx, "idempotency layer enabled", logger.String("redis", cfg.RedisAddr))
	}

	ing := ingest.New(pub)
	qs := query.New(st)

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start store metrics updater
	go startStoreMetricsUpdater(ctx, st)

	apiServer := api.NewServer(ing, qs, cfg.QueryMaxLimit)
	handler := api.NewRouter(apiServer, rdb, time.Duration(cfg.IdempotencyTTLMS)*time.Millisecond)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("stream_driver", cfg.StreamDriver),
			logger.String("store_driver", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newStore opens the configured store backend.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	case "pebble":
		return pebblestore.New(cfg.PebblePath)
	default:
		return memstore.New(), nil
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startStoreMetricsUpdater starts a background goroutine that keeps the
// store row gauge current.
func startStoreMetricsUpdater(ctx context.Context, st store.Store) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := st.Count(ctx); err == nil {
				metrics.UpdateStoreRecordsTotal(n)
			}
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

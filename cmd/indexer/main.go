package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchwire/internal/adapters/deadletter"
	"matchwire/internal/adapters/http/api"
	"matchwire/internal/adapters/store"
	"matchwire/internal/adapters/store/memstore"
	pebblestore "matchwire/internal/adapters/store/pebble"
	"matchwire/internal/adapters/store/postgres"
	"matchwire/internal/adapters/stream"
	streamkafka "matchwire/internal/adapters/stream/kafka"
	"matchwire/internal/config"
	"matchwire/internal/indexer"
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

	if cfg.StreamDriver != "kafka" {
		os.Stderr.WriteString("stream_driver " + cfg.StreamDriver + " runs the indexer inside the api binary; nothing to do\n")
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

	st, err := newStore(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		return
	}
	defer func() { _ = st.Close() }()

	// Records the indexer gives up on land here for inspection and replay.
	sink := deadletter.NewKafkaSink(
		deadletter.WithSinkBrokers(cfg.Brokers),
		deadletter.WithSinkTopic(cfg.DeadLetterTopic),
	)
	defer func() { _ = sink.Close() }()

	// One group member per worker; the group protocol spreads partitions.
	factory := func(context.Context) (stream.Consumer, error) {
		return streamkafka.NewConsumer(
			streamkafka.WithConsumerBrokers(cfg.Brokers),
			streamkafka.WithConsumerTopic(cfg.Topic),
			streamkafka.WithConsumerGroup(cfg.GroupID),
			streamkafka.WithMaxBatchSize(cfg.MaxBatchSize),
			streamkafka.WithMaxWaitWindow(time.Duration(cfg.MaxWaitWindowMS)*time.Millisecond),
		), nil
	}

	svc := indexer.New(factory, st, sink,
		indexer.WithWorkerCount(cfg.WorkerCount),
		indexer.WithRetry(cfg.StoreRetryMax, time.Duration(cfg.StoreRetryBaseMS)*time.Millisecond),
	)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start indexer", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start store metrics updater
	go startStoreMetricsUpdater(ctx, st)

	// Operational endpoints only; the business API lives in the api binary.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.NewHealthHandler().HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting ops HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("topic", cfg.Topic),
			logger.String("group", cfg.GroupID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down indexer...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "indexer stopped")
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

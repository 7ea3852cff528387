package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"matchwire/internal/adapters/http/api"
	"matchwire/internal/adapters/store/memstore"
	"matchwire/internal/adapters/stream/memlog"
	"matchwire/internal/config"
	"matchwire/internal/ingest"
	"matchwire/internal/query"
	"matchwire/pkg/logger"
	"matchwire/pkg/metrics"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainComponents(t *testing.T) {
	convey.Convey("Given the api binary's components", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			_ = os.Setenv("MATCHWIRE_ADDR", ":8080")
			_ = os.Setenv("MATCHWIRE_WORKER_COUNT", "4")
			_ = os.Setenv("MATCHWIRE_STORE_DRIVER", "memory")
			defer func() {
				_ = os.Unsetenv("MATCHWIRE_ADDR")
				_ = os.Unsetenv("MATCHWIRE_WORKER_COUNT")
				_ = os.Unsetenv("MATCHWIRE_STORE_DRIVER")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When opening the configured store", func() {
			ctx := context.Background()

			convey.Convey("Then the memory driver should open", func() {
				cfg := config.New(ctx)
				cfg.StoreDriver = "memory"
				st, err := newStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)
				convey.So(st, convey.ShouldNotBeNil)
				convey.So(st.Close(), convey.ShouldBeNil)
			})

			convey.Convey("And the pebble driver should open in a scratch directory", func() {
				cfg := config.New(ctx)
				cfg.StoreDriver = "pebble"
				cfg.PebblePath = t.TempDir()
				st, err := newStore(ctx, cfg)
				convey.So(err, convey.ShouldBeNil)
				convey.So(st, convey.ShouldNotBeNil)
				convey.So(st.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When assembling the HTTP surface over in-memory drivers", func() {
			log := memlog.New()
			st := memstore.New()
			ing := ingest.New(log)
			qs := query.New(st)

			convey.Convey("Then the server and router should come up", func() {
				server := api.NewServer(ing, qs, 100)
				convey.So(server, convey.ShouldNotBeNil)

				handler := api.NewRouter(server, nil, 0)
				convey.So(handler, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When creating a metrics manager for this process", func() {
			// Use a custom registry to avoid duplicate registration issues
			registry := prometheus.NewRegistry()
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("When running the system metrics updater", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then it should stop with the context", func() {
				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When running the store metrics updater", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then it should stop with the context", func() {
				convey.So(func() {
					startStoreMetricsUpdater(ctx, memstore.New())
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When updating system metrics once", func() {
			convey.Convey("Then it should update without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			})
		})
	})
}

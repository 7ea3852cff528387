package config_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"matchwire/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.Topic, convey.ShouldEqual, "match-events")
			convey.So(cfg.GroupID, convey.ShouldEqual, "matchwire-indexer")
			convey.So(cfg.Brokers, convey.ShouldResemble, []string{"localhost:9092"})
			convey.So(cfg.MaxBatchSize, convey.ShouldEqual, 100)
			convey.So(cfg.MaxWaitWindowMS, convey.ShouldEqual, 1_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "pebble")
			convey.So(cfg.QueryMaxLimit, convey.ShouldEqual, 1_000)
			convey.So(cfg.StoreRetryMax, convey.ShouldEqual, 5)
			convey.So(cfg.StoreRetryBaseMS, convey.ShouldEqual, 100)
		})
	})
}

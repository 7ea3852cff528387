package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording ingestion metrics", func() {
			Convey("Then it should record accepted events", func() {
				So(func() {
					RecordEventAccepted()
					RecordEventAccepted()
					RecordEventAccepted()
				}, ShouldNotPanic)
			})

			Convey("And it should record rejected events by field", func() {
				So(func() {
					RecordEventRejected("match_id")
					RecordEventRejected("event_type")
					RecordEventRejected("timestamp")
				}, ShouldNotPanic)
			})

			Convey("And it should record publish errors and latency", func() {
				So(func() {
					RecordPublishError()
					RecordPublishLatency(3.5)
					RecordPublishLatency(12.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording consumer metrics", func() {
			Convey("Then it should record polled batches", func() {
				So(func() {
					RecordBatchPolled(1)
					RecordBatchPolled(25)
					RecordBatchPolled(100)
				}, ShouldNotPanic)
			})

			Convey("And it should record indexed records", func() {
				So(func() {
					RecordRecordIndexed()
					RecordRecordIndexed()
				}, ShouldNotPanic)
			})

			Convey("And it should record duplicate writes", func() {
				So(func() {
					RecordDuplicateWrite()
					RecordDuplicateWrite()
				}, ShouldNotPanic)
			})

			Convey("And it should record indexing and commit latency", func() {
				So(func() {
					RecordIndexLatency(2.0)
					RecordIndexLatency(8.0)
					RecordCommitLatency(1.0)
					RecordCommitLatency(4.0)
				}, ShouldNotPanic)
			})

			Convey("And it should record dead letters by reason", func() {
				So(func() {
					RecordDeadLetter("decode_failed")
					RecordDeadLetter("store_unavailable")
				}, ShouldNotPanic)
			})

			Convey("And it should record store retries and handler errors", func() {
				So(func() {
					RecordStoreRetry()
					RecordHandlerError()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording query metrics", func() {
			Convey("Then it should record served queries by scope", func() {
				So(func() {
					RecordQuery("match")
					RecordQuery("event_type")
				}, ShouldNotPanic)
			})

			Convey("And it should record query latency and rows returned", func() {
				So(func() {
					RecordQueryLatency(1.5)
					RecordQueryLatency(9.0)
					RecordRowsReturned(0)
					RecordRowsReturned(42)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording operational metrics", func() {
			Convey("Then it should update worker count", func() {
				So(func() {
					UpdateWorkerCount(4)
					UpdateWorkerCount(8)
				}, ShouldNotPanic)
			})

			Convey("And it should record worker halts", func() {
				So(func() {
					RecordWorkerHalt()
				}, ShouldNotPanic)
			})

			Convey("And it should update consumer lag per partition", func() {
				So(func() {
					UpdateConsumerLag("0", 120)
					UpdateConsumerLag("1", 0)
				}, ShouldNotPanic)
			})

			Convey("And it should update store records total", func() {
				So(func() {
					UpdateStoreRecordsTotal(10000)
					UpdateStoreRecordsTotal(15000)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP metrics", func() {
			Convey("Then it should record HTTP requests", func() {
				So(func() {
					RecordHTTPRequest("/healthz", "GET", "200")
					RecordHTTPRequest("/events", "POST", "202")
					RecordHTTPRequest("/matches/{match_id}", "GET", "200")
				}, ShouldNotPanic)
			})

			Convey("And it should record HTTP request duration", func() {
				So(func() {
					RecordHTTPRequestDuration("/healthz", "GET", "200", 5.0)
					RecordHTTPRequestDuration("/events", "POST", "202", 10.0)
					RecordHTTPRequestDuration("/matches/{match_id}", "GET", "200", 15.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording errors by component", func() {
			Convey("Then it should accept component and type labels", func() {
				So(func() {
					RecordErrorByComponent("stream", "timeout")
					RecordErrorByComponent("store", "connection_failed")
					RecordErrorByComponent("ingest", "validation")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsEdgeCases(t *testing.T) {
	Convey("Given metrics edge cases", t, func() {
		Convey("When recording metrics with edge values", func() {
			Convey("And using zero values", func() {
				So(func() {
					UpdateWorkerCount(0)
					UpdateStoreRecordsTotal(0)
					RecordBatchPolled(0)
					RecordQueryLatency(0.0)
					RecordHTTPRequestDuration("/test", "GET", "200", 0.0)
				}, ShouldNotPanic)
			})

			Convey("And using negative values", func() {
				So(func() {
					UpdateWorkerCount(-10)
					UpdateStoreRecordsTotal(-1000)
					UpdateConsumerLag("0", -1)
				}, ShouldNotPanic)
			})

			Convey("And using very large values", func() {
				So(func() {
					UpdateStoreRecordsTotal(10000000)
					RecordBatchPolled(1000000)
					RecordQueryLatency(30000.0)
					RecordRowsReturned(1 << 20)
				}, ShouldNotPanic)
			})

			Convey("And using empty strings", func() {
				So(func() {
					RecordHTTPRequest("", "", "200")
					RecordHTTPRequestDuration("", "", "200", 10.0)
					RecordErrorByComponent("", "")
					RecordEventRejected("")
					RecordDeadLetter("")
					RecordQuery("")
				}, ShouldNotPanic)
			})

			Convey("And using special characters in labels", func() {
				So(func() {
					RecordHTTPRequest("/matches/abc123?limit=10", "GET", "200")
					RecordErrorByComponent("component-with-dash", "error_with_underscore")
					RecordDeadLetter("decode.failed")
					RecordQuery("event_type")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics concurrency", t, func() {
		Convey("When recording metrics concurrently", func() {
			done := make(chan bool, 10)

			// Start multiple goroutines recording metrics
			for i := 0; i < 10; i++ {
				go func(id int) {
					for j := 0; j < 100; j++ {
						RecordEventAccepted()
						RecordBatchPolled(j)
						RecordIndexLatency(float64(j))
						RecordHTTPRequest("/test", "GET", "200")
					}
					done <- true
				}(i)
			}

			// Wait for all goroutines to complete
			for i := 0; i < 10; i++ {
				<-done
			}

			Convey("Then it should handle concurrent access without panics", func() {
				So(true, ShouldBeTrue) // If we get here, no panics occurred
			})
		})
	})
}

func TestMetricsOptionsValidation(t *testing.T) {
	Convey("Given metrics options validation", t, func() {
		Convey("When creating with empty namespace", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with empty subsystem", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithSubsystem(""), WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with nil histogram buckets", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with nil custom labels", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithCustomLabels(nil), WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with zero refresh interval", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRefreshInterval(0), WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

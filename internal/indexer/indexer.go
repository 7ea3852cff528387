// Package indexer consumes match events from the stream and persists them in
// the indexed store.
//
// Each worker is one consumer group member: it polls a batch, upserts every
// record, and commits only once the whole batch is durable. Records that can
// never be processed go to the dead letter sink and the batch continues; a
// store that stays down through every retry halts the member instead, so the
// uncommitted batch redelivers rather than getting lost.
package indexer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"matchwire/internal/adapters/deadletter"
	"matchwire/internal/adapters/store"
	"matchwire/internal/adapters/stream"
	"matchwire/internal/domain/event"
	"matchwire/pkg/logger"
	"matchwire/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetryMax       = 5
	defaultRetryBase      = 100 * time.Millisecond
	pollRetryDelay        = time.Second
	workerShutdownTimeout = 5 * time.Second
)

// ConsumerFactory opens one consumer group member. The service calls it once
// per worker, so partitions spread across the pool the same way they would
// across processes.
type ConsumerFactory func(ctx context.Context) (stream.Consumer, error)

// Service runs a pool of indexing workers.
type Service struct {
	mu sync.Mutex

	// Core components
	newConsumer ConsumerFactory
	store       store.Store
	deadLetters deadletter.Sink
	workers     []*worker

	// Configuration
	workerCount int
	retryMax    int
	retryBase   time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of consumer group members.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithRetry shapes the store write retry policy: up to max retries after the
// first attempt, with exponential backoff starting at base.
func WithRetry(max int, base time.Duration) Option {
	return func(s *Service) {
		if max >= 0 {
			s.retryMax = max
		}
		if base > 0 {
			s.retryBase = base
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs an indexer service. Consumers are opened on Start; the
// store and sink are injected and stay owned by the caller.
func New(newConsumer ConsumerFactory, st store.Store, sink deadletter.Sink, opts ...Option) *Service {
	s := &Service{
		newConsumer: newConsumer,
		store:       st,
		deadLetters: sink,
		workerCount: 1,
		retryMax:    defaultRetryMax,
		retryBase:   defaultRetryBase,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the consumers and launches the workers. It is a no-op when the
// service already runs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("indexer")
	}

	consumers := make([]stream.Consumer, 0, s.workerCount)
	for i := 0; i < s.workerCount; i++ {
		c, err := s.newConsumer(ctx)
		if err != nil {
			for _, open := range consumers {
				_ = open.Close()
			}
			return fmt.Errorf("%w: %w", ErrConsumerOpen, err)
		}
		consumers = append(consumers, c)
	}

	s.workers = make([]*worker, len(consumers))
	for i, c := range consumers {
		s.workers[i] = newWorker(
			"worker-"+strconv.Itoa(i),
			c,
			s.store,
			s.deadLetters,
			s.retryMax,
			s.retryBase,
			s.logger,
		)
		go s.workers[i].run(ctx)
	}

	metrics.UpdateWorkerCount(len(s.workers))
	s.started = true
	s.logger.Info(ctx, "indexer started",
		logger.Int("workers", len(s.workers)),
		logger.Int("retry_max", s.retryMax),
	)
	return nil
}

// Stop signals every worker to drain its in-flight batch and waits for them
// to exit. Uncommitted records redeliver to the next run.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping indexer...")

	for _, w := range s.workers {
		close(w.shutdown)
	}
	for _, w := range s.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			s.logger.Warn(ctx, "worker shutdown timed out", logger.String("worker", w.name))
		}
	}

	s.workers = nil
	metrics.UpdateWorkerCount(0)
	s.started = false
	s.logger.Info(ctx, "indexer stopped")
}

// worker is one consumer group member's poll/upsert/commit loop.
type worker struct {
	name        string
	consumer    stream.Consumer
	store       store.Store
	deadLetters deadletter.Sink

	retryMax  int
	retryBase time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

func newWorker(name string, c stream.Consumer, st store.Store, sink deadletter.Sink, retryMax int, retryBase time.Duration, log logger.Logger) *worker {
	return &worker{
		name:        name,
		consumer:    c,
		store:       st,
		deadLetters: sink,
		retryMax:    retryMax,
		retryBase:   retryBase,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      log.Named(name),
	}
}

// run loops until the context is canceled, shutdown is signaled, or the
// store stays down through a full retry cycle. Closing the consumer on exit
// releases this member's partitions to the rest of the group.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer func() { _ = w.consumer.Close() }()

	// Shutdown interrupts a blocked Poll but never an in-flight batch:
	// records already polled are indexed and committed before exit.
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.shutdown:
			cancel()
		case <-pollCtx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		default:
		}

		batch, err := w.consumer.Poll(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil {
				return
			}
			metrics.RecordHandlerError()
			w.logger.Error(ctx, "poll failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-w.shutdown:
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		if len(batch) == 0 {
			continue
		}
		metrics.RecordBatchPolled(len(batch))

		if err := w.processBatch(ctx, batch); err != nil {
			// Nothing gets committed: the batch redelivers once a healthy
			// member holds these partitions.
			metrics.RecordWorkerHalt()
			metrics.RecordErrorByComponent("indexer", "store_unavailable")
			w.logger.Error(ctx, "halting after unrecoverable batch failure",
				logger.Int("batch", len(batch)),
				logger.Error(err),
			)
			return
		}

		start := time.Now()
		if err := w.consumer.Commit(ctx, batch...); err != nil {
			w.logger.Warn(ctx, "commit failed, batch will redeliver", logger.Error(err))
			continue
		}
		metrics.RecordCommitLatency(float64(time.Since(start).Milliseconds()))
	}
}

func (w *worker) processBatch(ctx context.Context, batch []stream.Record) error {
	for i := range batch {
		if err := w.processRecord(ctx, batch[i]); err != nil {
			return err
		}
	}
	return nil
}

// processRecord indexes one stream record. Poison records are dead-lettered
// and reported as handled; only an unreachable store or a failed dead letter
// push returns an error, because both mean the record must redeliver.
func (w *worker) processRecord(ctx context.Context, rec stream.Record) error {
	start := time.Now()

	e, err := event.Decode(rec.Value)
	if err != nil {
		return w.deadLetter(ctx, rec, "decode", err)
	}
	if err := e.Validate(); err != nil {
		return w.deadLetter(ctx, rec, "validate", err)
	}

	row := event.Record{Event: e, Season: event.DeriveSeason(e.Timestamp)}

	created, err := w.upsertWithRetry(ctx, row)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if created {
		metrics.RecordRecordIndexed()
	} else {
		// Redelivery or a provider re-submission landed on an existing
		// (match id, timestamp) row; the upsert absorbed it.
		metrics.RecordDuplicateWrite()
		w.logger.Debug(ctx, "absorbed duplicate write",
			logger.String("match_id", e.MatchID),
			logger.String("timestamp", e.Timestamp),
		)
	}
	metrics.RecordIndexLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (w *worker) upsertWithRetry(ctx context.Context, row event.Record) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= w.retryMax; attempt++ {
		if attempt > 0 {
			backoff := w.retryBase * time.Duration(1<<(attempt-1))
			metrics.RecordStoreRetry()
			w.logger.Warn(ctx, "retrying store write",
				logger.Int("attempt", attempt),
				logger.Int("max", w.retryMax),
				logger.Duration("backoff", backoff),
				logger.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		created, err := w.store.Upsert(ctx, row)
		if err == nil {
			return created, nil
		}
		lastErr = err
	}
	return false, lastErr
}

// deadLetter routes one poison record to the sink. A failed push is an
// error: committing past a record that reached neither the store nor the
// sink would lose it for good.
func (w *worker) deadLetter(ctx context.Context, rec stream.Record, category string, cause error) error {
	entry := deadletter.Entry{
		Key:       string(rec.Key),
		Payload:   rec.Value,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Reason:    category + ": " + cause.Error(),
	}
	if err := w.deadLetters.Push(ctx, entry); err != nil {
		metrics.RecordErrorByComponent("indexer", "dead_letter_failed")
		return fmt.Errorf("%w: %w", ErrDeadLetterFailed, err)
	}

	metrics.RecordDeadLetter(category)
	w.logger.Warn(ctx, "record dead-lettered",
		logger.String("reason", category),
		logger.Int("partition", rec.Partition),
		logger.Int64("offset", rec.Offset),
		logger.Error(cause),
	)
	return nil
}

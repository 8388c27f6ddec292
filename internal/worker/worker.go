package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richd0tcom/heartline/internal/broker"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/metrics"
)

const shutdownFlushTimeout = 5 * time.Second

type Worker struct {
	store         domain.DataStore
	consumer      domain.ReadingConsumer
	workerCount   int
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewWorker(store domain.DataStore, consumer domain.ReadingConsumer, workerCount, batchSize int, flushInterval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Worker{
		store:         store,
		consumer:      consumer,
		workerCount:   workerCount,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		metrics:       m,
	}
}

// Start consumes the queue until ctx is cancelled. A single pump decodes
// messages and fans them out to the workers, each of which batches on its own.
// Messages already taken off the queue when ctx is cancelled are still stored
// before Start returns.
func (w *Worker) Start(ctx context.Context, mq broker.MessageQueue) error {
	if err := mq.Subscribe(); err != nil {
		return err
	}

	in := make(chan []domain.Reading)

	var wg sync.WaitGroup
	for i := range w.workerCount {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, in)
		}(i)
	}

	// Workers keep receiving until in is closed, so this send never blocks
	// forever, and a dequeued batch is never dropped on shutdown.
	handler := func(data []byte) error {
		var bulk domain.BulkReadings
		if err := json.Unmarshal(data, &bulk); err != nil {
			w.metrics.BatchErrors.WithLabelValues("decode").Inc()
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
		in <- bulk.Data
		return nil
	}

	err := mq.Consume(ctx, handler)
	close(in)
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, broker.ErrClosed) {
		return err
	}
	return nil
}

func (w *Worker) worker(ctx context.Context, workerID int, in <-chan []domain.Reading) {
	w.logger.Debug("worker started", "worker", workerID)
	defer w.logger.Debug("worker stopped", "worker", workerID)

	batch := make([]domain.Reading, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		bctx, cancel := w.batchContext(ctx)
		w.processBatch(bctx, batch)
		cancel()
		batch = make([]domain.Reading, 0, w.batchSize)
	}

	for {
		select {
		case readings, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, readings...)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// batchContext returns ctx while running. Once ctx is cancelled, batches still
// being drained get a detached context bounded by shutdownFlushTimeout.
func (w *Worker) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
}

func (w *Worker) processBatch(ctx context.Context, batch []domain.Reading) {
	start := time.Now()
	defer func() { w.metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	if err := w.store.InsertBatch(ctx, batch); err != nil {
		w.metrics.BatchErrors.WithLabelValues("store").Inc()
		w.logger.Error("failed to store batch", "size", len(batch), "err", err)
		return
	}
	w.metrics.BatchesStored.Inc()

	if err := w.consumer.Process(batch); err != nil {
		w.metrics.BatchErrors.WithLabelValues("consumer").Inc()
		w.logger.Error("failed to process batch in consumer", "size", len(batch), "err", err)
		return
	}

	w.logger.Info("processed batch", "size", len(batch), "duration", time.Since(start))
}

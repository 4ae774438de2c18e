package export

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sysotel-agent/internal/model"
)

const (
	// defaultQueueSize bounds buffered samples while the backend is down.
	defaultQueueSize = 1000
	// defaultBatchSize is how many samples one export call carries.
	defaultBatchSize = 100
	// defaultFlushTimeout forces a flush of a partial batch.
	defaultFlushTimeout = 5 * time.Second
	// flushTick is how often the flush conditions are evaluated.
	flushTick = time.Second
	// exportTimeout bounds a single export RPC.
	exportTimeout = 10 * time.Second
)

// MetricExporter sends one batch to the telemetry backend.
type MetricExporter interface {
	Export(ctx context.Context, samples []model.MetricSample) error
	Shutdown(ctx context.Context) error
}

// Stats is a point-in-time view of exporter throughput.
type Stats struct {
	Queued   int   `json:"queued"`
	Exported int64 `json:"exported"`
	Dropped  int64 `json:"dropped"`
	Failures int64 `json:"failures"`
}

// BatchExporter buffers samples in a bounded FIFO queue and flushes them in
// batches, either when a full batch accumulates or when the flush timeout
// elapses with samples waiting. When the queue overflows, the oldest samples
// are dropped first: recent data is worth more than stale data. A failed
// flush goes back to the front of the queue so export order is preserved.
type BatchExporter struct {
	logger       *slog.Logger
	exporter     MetricExporter
	queueSize    int
	batchSize    int
	flushTimeout time.Duration

	mu        sync.Mutex
	queue     []model.MetricSample
	lastFlush time.Time

	healthy  atomic.Bool
	exported atomic.Int64
	dropped  atomic.Int64
	failures atomic.Int64
}

func NewBatchExporter(logger *slog.Logger, exporter MetricExporter, queueSize, batchSize int, flushTimeout time.Duration) *BatchExporter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchSize > queueSize {
		batchSize = queueSize
	}
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	b := &BatchExporter{
		logger:       logger,
		exporter:     exporter,
		queueSize:    queueSize,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		lastFlush:    time.Now(),
	}
	b.healthy.Store(true)
	return b
}

// Enqueue adds a cycle's samples to the queue, evicting the oldest entries
// when capacity is exceeded.
func (b *BatchExporter) Enqueue(ctx context.Context, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, samples...)
	if over := len(b.queue) - b.queueSize; over > 0 {
		b.queue = b.queue[over:]
		b.dropped.Add(int64(over))
		b.logger.Warn("export queue overflow, dropped oldest samples",
			"dropped", over, "capacity", b.queueSize)
	}
	return nil
}

// Run evaluates the flush conditions once a second until the context ends,
// then drains the queue and shuts the underlying exporter down.
func (b *BatchExporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), exportTimeout)
			defer cancel()
			return b.exporter.Shutdown(shutdownCtx)
		case <-ticker.C:
			b.maybeFlush(ctx)
		}
	}
}

func (b *BatchExporter) maybeFlush(ctx context.Context) {
	b.mu.Lock()
	queued := len(b.queue)
	due := queued > 0 && time.Since(b.lastFlush) >= b.flushTimeout
	if queued < b.batchSize && !due {
		b.mu.Unlock()
		return
	}
	batch := b.takeBatchLocked()
	b.mu.Unlock()

	b.send(ctx, batch)
}

// takeBatchLocked pops up to batchSize samples from the queue front.
func (b *BatchExporter) takeBatchLocked() []model.MetricSample {
	n := b.batchSize
	if n > len(b.queue) {
		n = len(b.queue)
	}
	batch := make([]model.MetricSample, n)
	copy(batch, b.queue[:n])
	b.queue = append(b.queue[:0], b.queue[n:]...)
	b.lastFlush = time.Now()
	return batch
}

func (b *BatchExporter) send(ctx context.Context, batch []model.MetricSample) {
	if len(batch) == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	if err := b.exporter.Export(sendCtx, batch); err != nil {
		b.failures.Add(1)
		b.healthy.Store(false)
		b.logger.Error("export failed, re-queueing batch", "samples", len(batch), "error", err)
		b.requeueFront(batch)
		return
	}
	b.exported.Add(int64(len(batch)))
	b.healthy.Store(true)
	b.logger.Debug("batch exported", "samples", len(batch))
}

// requeueFront puts a failed batch back at the head of the queue so the next
// flush retries it before newer samples. Overflow still evicts oldest first,
// which trims the batch head.
func (b *BatchExporter) requeueFront(batch []model.MetricSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]model.MetricSample, 0, len(batch)+len(b.queue))
	merged = append(merged, batch...)
	merged = append(merged, b.queue...)
	if over := len(merged) - b.queueSize; over > 0 {
		merged = merged[over:]
		b.dropped.Add(int64(over))
	}
	b.queue = merged
}

// drain flushes whole batches until the queue is empty or an export fails.
func (b *BatchExporter) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		batch := b.takeBatchLocked()
		b.mu.Unlock()

		drainCtx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		err := b.exporter.Export(drainCtx, batch)
		cancel()
		if err != nil {
			b.failures.Add(1)
			b.logger.Warn("drain export failed, remaining samples discarded",
				"discarded", len(batch), "error", err)
			return
		}
		b.exported.Add(int64(len(batch)))
	}
}

// Healthy reports whether the most recent export attempt succeeded.
func (b *BatchExporter) Healthy() bool { return b.healthy.Load() }

// Stats returns current queue depth and lifetime counters.
func (b *BatchExporter) Stats() Stats {
	b.mu.Lock()
	queued := len(b.queue)
	b.mu.Unlock()
	return Stats{
		Queued:   queued,
		Exported: b.exported.Load(),
		Dropped:  b.dropped.Load(),
		Failures: b.failures.Load(),
	}
}

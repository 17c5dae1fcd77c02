package notifylog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeops/desksync/internal/notify"
)

// Config tunes batching for the notification log writer.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = 2 * time.Second
)

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
}

// Metrics counts writer activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

type row struct {
	ID        string
	Event     string
	Priority  string
	Title     string
	Message   string
	GroupKey  string
	CreatedAt time.Time
}

// Writer persists notifications to the notification_log table in
// batches. Inserts are keyed on the notification id with ON CONFLICT
// DO NOTHING, so a retried append never produces a duplicate record.
//
// Writer implements notify.Log.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	db *pgxpool.Pool

	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewWriter creates a notification log writer over the given pool.
func NewWriter(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Start begins the periodic flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("notification log writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the writer. The final flush runs even when ctx expires
// before the flush loop exits.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping notification log writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("notification log writer stopped")
	case <-ctx.Done():
		w.logger.Warn("notification log writer stop timed out")
	}

	w.flush(context.Background())
	return nil
}

// Append queues one notification for persistence.
func (w *Writer) Append(ctx context.Context, n notify.Notification) error {
	r := transform(n)

	w.batchMu.Lock()
	w.batch = append(w.batch, r)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// transform maps a notification onto its table row.
func transform(n notify.Notification) row {
	return row{
		ID:        n.ID,
		Event:     n.Event,
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		GroupKey:  n.GroupKey,
		CreatedAt: n.Timestamp,
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("notification batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed notifications",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (w *Writer) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO notification_log (id, event, priority, title, message, group_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Event, r.Priority, r.Title, r.Message, r.GroupKey, r.CreatedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// cycleRow is one cycles table insert.
type cycleRow struct {
	InstanceID     string
	Timestamp      time.Time
	MarketsScanned int
	Candidates     int
	Rejections     []byte // JSONB
	TradeTicker    string
	TradeError     string
	BreakerState   string
	TradingActive  bool
	EquityCents    int64
	CashCents      int64
	DailyPnLCents  int64
	DurationMS     int64
}

// fillRow is one fills table insert, keyed by order ID.
type fillRow struct {
	InstanceID       string
	OrderID          string
	Ticker           string
	Side             string
	Strategy         string
	PriceCents       int
	Count            int
	RealizedPnLCents int64
	Edge             float64
	Confidence       float64
	FilledAt         int64
}

// Metrics tracks journal activity.
type Metrics struct {
	Inserts int64
	Errors  int64
	Dropped int64
	Flushes int64
}

// Journal batches trading records into Postgres. All methods are safe
// on a nil receiver, which disables persistence entirely.
type Journal struct {
	cfg    config.JournalConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	cycles chan cycleRow
	fills  chan fillRow

	batchMu    sync.Mutex
	cycleBatch []cycleRow
	fillBatch  []fillRow
	metrics    Metrics

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a journal writing through db.
func New(cfg config.JournalConfig, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		cycles:     make(chan cycleRow, cfg.BufferSize),
		fills:      make(chan fillRow, cfg.BufferSize),
		cycleBatch: make([]cycleRow, 0, cfg.BatchSize),
		fillBatch:  make([]fillRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and flushing batches.
func (j *Journal) Start(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop drains goroutines and performs a final flush.
func (j *Journal) Stop(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.logger.Info("stopping journal")

	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("journal stopped")
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	j.drain()
	j.flush()
	return nil
}

// drain moves rows still queued in the channels into the batches so
// the final flush persists them. Only safe once the consume loop has
// exited.
func (j *Journal) drain() {
	for {
		select {
		case row := <-j.cycles:
			j.batchMu.Lock()
			j.cycleBatch = append(j.cycleBatch, row)
			j.batchMu.Unlock()
		case row := <-j.fills:
			j.batchMu.Lock()
			j.fillBatch = append(j.fillBatch, row)
			j.batchMu.Unlock()
		default:
			return
		}
	}
}

// RecordCycle enqueues one cycle result. Never blocks; drops when the
// buffer is full.
func (j *Journal) RecordCycle(instanceID string, r model.CycleResult) {
	if j == nil {
		return
	}
	select {
	case j.cycles <- transformCycle(instanceID, r):
	default:
		j.drop()
	}
}

// RecordFill enqueues one executed trade. Never blocks.
func (j *Journal) RecordFill(instanceID string, rec model.TradeRecord) {
	if j == nil {
		return
	}
	select {
	case j.fills <- transformFill(instanceID, rec):
	default:
		j.drop()
	}
}

// Stats returns a snapshot of journal metrics.
func (j *Journal) Stats() Metrics {
	if j == nil {
		return Metrics{}
	}
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

func (j *Journal) drop() {
	j.batchMu.Lock()
	j.metrics.Dropped++
	j.batchMu.Unlock()
}

func transformCycle(instanceID string, r model.CycleResult) cycleRow {
	rejections, _ := json.Marshal(r.Rejections)

	row := cycleRow{
		InstanceID:     instanceID,
		Timestamp:      r.Timestamp,
		MarketsScanned: r.MarketsScanned,
		Candidates:     r.Candidates,
		Rejections:     rejections,
		TradeError:     r.TradeError,
		BreakerState:   r.BreakerState,
		TradingActive:  r.TradingActive,
		EquityCents:    r.Portfolio.EquityCents,
		CashCents:      r.Portfolio.CashCents,
		DailyPnLCents:  r.Portfolio.DailyPnLCents,
		DurationMS:     r.CycleDurationMS,
	}
	if r.Trade != nil {
		row.TradeTicker = r.Trade.Fill.Ticker
	}
	return row
}

func transformFill(instanceID string, rec model.TradeRecord) fillRow {
	return fillRow{
		InstanceID:       instanceID,
		OrderID:          rec.Fill.OrderID,
		Ticker:           rec.Fill.Ticker,
		Side:             string(rec.Fill.Side),
		Strategy:         rec.Opportunity.Strategy,
		PriceCents:       rec.Fill.Price,
		Count:            rec.Fill.Count,
		RealizedPnLCents: rec.Fill.RealizedPnLCents,
		Edge:             rec.Opportunity.Edge,
		Confidence:       rec.Opportunity.Confidence,
		FilledAt:         rec.Fill.FilledAt,
	}
}

// consumeLoop accumulates rows until a batch fills.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case row := <-j.cycles:
			j.batchMu.Lock()
			j.cycleBatch = append(j.cycleBatch, row)
			full := len(j.cycleBatch) >= j.cfg.BatchSize
			j.batchMu.Unlock()
			if full {
				j.flush()
			}
		case row := <-j.fills:
			j.batchMu.Lock()
			j.fillBatch = append(j.fillBatch, row)
			full := len(j.fillBatch) >= j.cfg.BatchSize
			j.batchMu.Unlock()
			if full {
				j.flush()
			}
		}
	}
}

// flushLoop flushes on a fixed interval regardless of batch size.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush()
		}
	}
}

// flush writes both pending batches to the database.
func (j *Journal) flush() {
	j.batchMu.Lock()
	cycles := j.cycleBatch
	fills := j.fillBatch
	j.cycleBatch = make([]cycleRow, 0, j.cfg.BatchSize)
	j.fillBatch = make([]fillRow, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	if len(cycles) == 0 && len(fills) == 0 {
		return
	}
	if j.db == nil {
		return
	}

	start := time.Now()
	batch := &pgx.Batch{}
	for _, r := range cycles {
		batch.Queue(`
			INSERT INTO cycles (
				instance_id, ts, markets_scanned, candidates, rejections,
				trade_ticker, trade_error, breaker_state, trading_active,
				equity_cents, cash_cents, daily_pnl_cents, duration_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, r.InstanceID, r.Timestamp, r.MarketsScanned, r.Candidates, r.Rejections,
			r.TradeTicker, r.TradeError, r.BreakerState, r.TradingActive,
			r.EquityCents, r.CashCents, r.DailyPnLCents, r.DurationMS)
	}
	for _, r := range fills {
		batch.Queue(`
			INSERT INTO fills (
				instance_id, order_id, ticker, side, strategy,
				price_cents, count, realized_pnl_cents, edge, confidence, filled_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (order_id) DO NOTHING
		`, r.InstanceID, r.OrderID, r.Ticker, r.Side, r.Strategy,
			r.PriceCents, r.Count, r.RealizedPnLCents, r.Edge, r.Confidence, r.FilledAt)
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	br := j.db.SendBatch(ctx, batch)
	err := br.Close()

	j.batchMu.Lock()
	if err != nil {
		j.metrics.Errors++
	} else {
		j.metrics.Inserts += int64(len(cycles) + len(fills))
		j.metrics.Flushes++
	}
	j.batchMu.Unlock()

	if err != nil {
		j.logger.Error("journal flush failed",
			"error", err,
			"cycles", len(cycles),
			"fills", len(fills))
		return
	}
	j.logger.Debug("journal flushed",
		"cycles", len(cycles),
		"fills", len(fills),
		"duration", time.Since(start))
}

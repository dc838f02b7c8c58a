package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Snapwave333/klashibot-sub001/internal/api"
	"github.com/Snapwave333/klashibot-sub001/internal/cache"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
	"github.com/Snapwave333/klashibot-sub001/internal/risk"
	"github.com/Snapwave333/klashibot-sub001/internal/scanner"
)

// Config holds the loop settings.
type Config struct {
	InstanceID          string
	CycleInterval       time.Duration
	MaxMarkets          int
	AnalysisConcurrency int
	OpportunityTTL      time.Duration
	CacheCapacity       int
	PaperMode           bool
	PaperEquityCents    int64 // Simulated starting equity in paper mode
}

// MarketSource produces the market set and per-market details.
type MarketSource interface {
	Scan(ctx context.Context, limit int) ([]model.MarketSnapshot, error)
	FetchDetails(ctx context.Context, tickers []string) []scanner.Detail
}

// Analyzer turns one market into zero or more candidates.
type Analyzer interface {
	Analyze(market model.MarketSnapshot, book model.OrderBookSnapshot) []model.Opportunity
}

// RiskGate is the serialized risk path.
type RiskGate interface {
	EvaluateBreaker(p model.PortfolioState) risk.BreakerState
	CheckTradeRisk(opp model.Opportunity, p model.PortfolioState) risk.Decision
	ApplyFill(fill model.FillResult, p model.PortfolioState) model.PortfolioState
	RecordTrade(ticker string)
	GroupUtilization(ticker string, p model.PortfolioState) float64
	ResetHalt()
}

// BalanceSource refreshes cash, equity, and the open-position book
// from the exchange.
type BalanceSource interface {
	GetBalance(ctx context.Context) (model.PortfolioBalance, error)
	GetPositions(ctx context.Context) ([]api.APIPosition, error)
}

// StatusSource reports whether exchange trading is open.
type StatusSource interface {
	GetExchangeStatus(ctx context.Context) (*api.ExchangeStatusResponse, error)
}

// Executor submits one order and reports the fill.
type Executor interface {
	Submit(ctx context.Context, opp model.Opportunity, contracts int) (model.FillResult, error)
}

// Sink receives the per-cycle result. Implementations must not block.
type Sink interface {
	Publish(result model.CycleResult)
}

// Recorder persists cycle results and fills.
type Recorder interface {
	RecordCycle(instanceID string, r model.CycleResult)
	RecordFill(instanceID string, rec model.TradeRecord)
}

// Deps wires the engine's collaborators. Status, Events, and Journal
// are optional.
type Deps struct {
	Markets    MarketSource
	Strategies Analyzer
	Risk       RiskGate
	Balance    BalanceSource
	Status     StatusSource
	Executor   Executor
	Events     Sink
	Journal    Recorder
}

// Engine runs the trading loop.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	opportunities *cache.Cache[[]model.Opportunity]

	// portfolio has one writer (the run loop); readers get clones.
	portfolioMu sync.RWMutex
	portfolio   model.PortfolioState
	seeded      bool
	currentDay  string // UTC date of the last daily rollover

	// lastTickers is the previous cycle's scan set; only the run loop
	// touches it.
	lastTickers map[string]struct{}

	cycles atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		opportunities: cache.New[[]model.Opportunity](cache.Config{
			TTL:      cfg.OpportunityTTL,
			Capacity: cfg.CacheCapacity,
		}),
	}
}

// Start seeds the portfolio and launches the cycle loop.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if e.cfg.PaperMode {
		e.portfolioMu.Lock()
		e.portfolio = model.PortfolioState{
			CashCents:       e.cfg.PaperEquityCents,
			EquityCents:     e.cfg.PaperEquityCents,
			StartOfDayCents: e.cfg.PaperEquityCents,
			PeakEquityCents: e.cfg.PaperEquityCents,
		}
		e.seeded = true
		e.currentDay = time.Now().UTC().Format("2006-01-02")
		e.portfolioMu.Unlock()
		e.logger.Info("paper trading portfolio seeded", "equity_cents", e.cfg.PaperEquityCents)
	}

	e.wg.Add(1)
	go e.run()

	e.logger.Info("engine started",
		"cycle_interval", e.cfg.CycleInterval,
		"max_markets", e.cfg.MaxMarkets,
		"paper_mode", e.cfg.PaperMode,
	)
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("stopping engine")

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped", "cycles", e.cycles.Load())
		return nil
	case <-ctx.Done():
		e.logger.Warn("engine stop timed out")
		return ctx.Err()
	}
}

// Portfolio returns a copy of the current portfolio.
func (e *Engine) Portfolio() model.PortfolioState {
	e.portfolioMu.RLock()
	defer e.portfolioMu.RUnlock()
	return e.portfolio.Clone()
}

// Cycles returns the number of completed cycles.
func (e *Engine) Cycles() int64 {
	return e.cycles.Load()
}

// CacheStats exposes the opportunity cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.opportunities.Stats()
}

// ResetHalt clears a circuit-breaker halt and the loss streak. Manual
// operator action via the health server.
func (e *Engine) ResetHalt() {
	e.deps.Risk.ResetHalt()
	e.portfolioMu.Lock()
	e.portfolio.ConsecutiveLosses = 0
	e.portfolioMu.Unlock()
	e.logger.Warn("halt reset requested")
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	// First cycle immediately rather than one interval in.
	e.runCycle(e.ctx)

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runCycle(e.ctx)
		}
	}
}

// runCycle executes one full scan-analyze-trade pass.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()
	softDeadline := start.Add(e.cfg.CycleInterval * 4 / 5)
	result := model.CycleResult{Timestamp: start}

	e.refreshPortfolio(ctx)
	p := e.Portfolio()

	state := e.deps.Risk.EvaluateBreaker(p)
	result.BreakerState = state.String()

	active := e.tradingActive(ctx)
	result.TradingActive = active

	markets, err := e.deps.Markets.Scan(ctx, e.cfg.MaxMarkets)
	if err != nil {
		e.logger.Error("market scan failed", "error", err)
		e.finishCycle(&result, p, start)
		return
	}
	result.MarketsScanned = len(markets)
	e.pruneDeparted(markets)

	candidates := e.collectCandidates(ctx, markets, softDeadline)
	result.Candidates = len(candidates)

	best, contracts := e.selectBest(candidates, p, &result)

	switch {
	case best == nil:
		// Nothing approved this cycle.
	case !active:
		e.logger.Info("trade skipped, exchange trading inactive", "ticker", best.Ticker)
	default:
		e.executeTrade(ctx, *best, contracts, &result)
	}

	p = e.Portfolio()
	e.finishCycle(&result, p, start)
}

// pruneDeparted drops strategy history and cached analyses for tickers
// that left the scan set, so a stale momentum window cannot leak into
// a relisted market.
func (e *Engine) pruneDeparted(markets []model.MarketSnapshot) {
	cur := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		cur[m.Ticker] = struct{}{}
	}

	pruner, prunable := e.deps.Strategies.(interface{ ClearHistory(ticker string) })
	for t := range e.lastTickers {
		if _, still := cur[t]; still {
			continue
		}
		if prunable {
			pruner.ClearHistory(t)
		}
		e.opportunities.Delete(t)
	}
	e.lastTickers = cur
}

// refreshPortfolio pulls cash/equity from the balance source and
// maintains the daily and peak baselines. Paper mode keeps its own
// simulated balance after seeding.
func (e *Engine) refreshPortfolio(ctx context.Context) {
	now := time.Now().UTC()

	if e.cfg.PaperMode {
		e.rolloverIfNewDay(now)
		return
	}

	bal, err := e.deps.Balance.GetBalance(ctx)
	if err != nil {
		e.logger.Warn("balance refresh failed, using previous snapshot", "error", err)
		e.rolloverIfNewDay(now)
		return
	}

	// Reconcile the open-position book so concentration checks see
	// positions opened before this process started.
	positions, posErr := e.deps.Balance.GetPositions(ctx)

	e.portfolioMu.Lock()
	e.portfolio.CashCents = bal.CashCents
	e.portfolio.EquityCents = bal.EquityCents
	if posErr != nil {
		e.logger.Warn("position refresh failed, keeping previous book", "error", posErr)
	} else {
		book := make([]model.Position, 0, len(positions))
		for i := range positions {
			if pos, ok := positions[i].ToPosition(); ok {
				book = append(book, pos)
			}
		}
		e.portfolio.Positions = book
	}
	if !e.seeded {
		e.portfolio.StartOfDayCents = bal.EquityCents
		e.portfolio.PeakEquityCents = bal.EquityCents
		e.seeded = true
		e.currentDay = now.Format("2006-01-02")
	}
	if e.portfolio.EquityCents > e.portfolio.PeakEquityCents {
		e.portfolio.PeakEquityCents = e.portfolio.EquityCents
	}
	e.portfolioMu.Unlock()

	e.rolloverIfNewDay(now)
}

// rolloverIfNewDay resets the daily P&L baseline at UTC midnight. The
// drawdown peak survives rollovers; only a manual reset touches it.
func (e *Engine) rolloverIfNewDay(now time.Time) {
	day := now.Format("2006-01-02")

	e.portfolioMu.Lock()
	defer e.portfolioMu.Unlock()

	if !e.seeded || e.currentDay == day {
		return
	}
	e.currentDay = day
	e.portfolio.DailyPnLCents = 0
	e.portfolio.StartOfDayCents = e.portfolio.EquityCents
	e.logger.Info("daily baseline rolled over",
		"day", day,
		"start_of_day_cents", e.portfolio.StartOfDayCents)
}

func (e *Engine) tradingActive(ctx context.Context) bool {
	if e.deps.Status == nil {
		return true
	}
	st, err := e.deps.Status.GetExchangeStatus(ctx)
	if err != nil {
		e.logger.Warn("exchange status check failed, assuming active", "error", err)
		return true
	}
	return st.ExchangeActive && st.TradingActive
}

// collectCandidates serves analyses from the opportunity cache and runs
// the rest in parallel. Past the soft deadline no new analyses start;
// in-flight ones finish on their own.
func (e *Engine) collectCandidates(ctx context.Context, markets []model.MarketSnapshot, softDeadline time.Time) []model.Opportunity {
	var candidates []model.Opportunity
	var uncached []string

	for _, m := range markets {
		if opps, ok := e.opportunities.Get(m.Ticker); ok {
			candidates = append(candidates, opps...)
			continue
		}
		uncached = append(uncached, m.Ticker)
	}
	if len(uncached) == 0 {
		return candidates
	}

	details := e.deps.Markets.FetchDetails(ctx, uncached)

	results := make([][]model.Opportunity, len(details))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.AnalysisConcurrency)

	launched := 0
	for i, d := range details {
		if time.Now().After(softDeadline) {
			e.logger.Warn("soft deadline reached, proceeding with partial analysis",
				"analyzed", launched,
				"skipped", len(details)-launched)
			break
		}
		launched++
		g.Go(func() error {
			results[i] = e.deps.Strategies.Analyze(d.Market, d.Book)
			return nil
		})
	}
	g.Wait()

	for i := 0; i < launched; i++ {
		ticker := details[i].Market.Ticker
		// Cache empty analyses too, so quiet markets are not re-fetched
		// every cycle within the TTL.
		e.opportunities.Put(ticker, results[i])
		candidates = append(candidates, results[i]...)
	}
	return candidates
}

// selectBest risk-checks every candidate against the cycle's portfolio
// snapshot and picks the highest edge*confidence among approvals, ties
// broken by lower correlation-group utilization.
func (e *Engine) selectBest(candidates []model.Opportunity, p model.PortfolioState, result *model.CycleResult) (*model.Opportunity, int) {
	var best *model.Opportunity
	var bestContracts int
	var bestScore, bestUtil float64

	for i := range candidates {
		c := candidates[i]
		d := e.deps.Risk.CheckTradeRisk(c, p)
		if !d.Approved {
			result.Rejections = append(result.Rejections, model.Rejection{
				Ticker:   c.Ticker,
				Strategy: c.Strategy,
				Reason:   string(d.Reason),
			})
			continue
		}

		score := c.Score()
		util := e.deps.Risk.GroupUtilization(c.Ticker, p)
		if best == nil || score > bestScore || (score == bestScore && util < bestUtil) {
			best = &candidates[i]
			bestContracts = d.Contracts
			bestScore = score
			bestUtil = util
		}
	}
	return best, bestContracts
}

// executeTrade submits the chosen order with one retry on transient
// failure, then applies the fill to the portfolio.
func (e *Engine) executeTrade(ctx context.Context, opp model.Opportunity, contracts int, result *model.CycleResult) {
	fill, err := e.deps.Executor.Submit(ctx, opp, contracts)
	if err != nil && isTransient(err) {
		e.logger.Warn("order submission failed, retrying once",
			"ticker", opp.Ticker,
			"error", err)
		fill, err = e.deps.Executor.Submit(ctx, opp, contracts)
	}
	if err != nil {
		e.logger.Error("order submission failed",
			"ticker", opp.Ticker,
			"contracts", contracts,
			"error", err)
		result.TradeError = err.Error()
		return
	}

	e.deps.Risk.RecordTrade(opp.Ticker)

	rec := model.TradeRecord{Opportunity: opp, Contracts: contracts, Fill: fill}
	result.Trade = &rec

	e.portfolioMu.Lock()
	e.portfolio = e.deps.Risk.ApplyFill(fill, e.portfolio)
	e.portfolioMu.Unlock()

	// The book just moved against the cached analysis.
	e.opportunities.Delete(opp.Ticker)

	if e.deps.Journal != nil {
		e.deps.Journal.RecordFill(e.cfg.InstanceID, rec)
	}

	e.logger.Info("trade executed",
		"ticker", opp.Ticker,
		"side", string(opp.Side),
		"contracts", contracts,
		"price", fill.Price,
		"order_id", fill.OrderID,
		"strategy", opp.Strategy)
}

func (e *Engine) finishCycle(result *model.CycleResult, p model.PortfolioState, start time.Time) {
	result.Portfolio = p
	result.CycleDurationMS = time.Since(start).Milliseconds()
	e.cycles.Add(1)

	if e.deps.Events != nil {
		e.deps.Events.Publish(*result)
	}
	if e.deps.Journal != nil {
		e.deps.Journal.RecordCycle(e.cfg.InstanceID, *result)
	}

	e.logger.Info("cycle complete",
		"markets", result.MarketsScanned,
		"candidates", result.Candidates,
		"rejections", len(result.Rejections),
		"traded", result.Trade != nil,
		"breaker", result.BreakerState,
		"duration_ms", result.CycleDurationMS)
}

// isTransient classifies a submission error for the single retry.
// Exchange 5xx/429 and transport failures retry; everything else is
// surfaced as-is.
func isTransient(err error) bool {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

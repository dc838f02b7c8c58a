package risk

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// Reason is an enumerable rejection reason. The check order is fixed,
// so for any given candidate and portfolio the reason is deterministic.
type Reason string

const (
	ReasonCircuitBreakerHalted Reason = "CircuitBreakerHalted"
	ReasonTickerCooldown       Reason = "TickerCooldown"
	ReasonTradeFrequencyLimit  Reason = "TradeFrequencyLimit"
	ReasonInsufficientEdge     Reason = "InsufficientEdge"
	ReasonConcentrationLimit   Reason = "ConcentrationLimit"
	ReasonSizeTooSmall         Reason = "SizeTooSmall"
)

// Decision is the outcome of one candidate check.
type Decision struct {
	Approved  bool
	Contracts int    // Final sized contracts when approved
	Reason    Reason // Set when rejected
	Detail    string // Human-readable context
}

// Report summarizes risk state for the health endpoint and dashboard.
type Report struct {
	State             string             `json:"state"`
	Halted            bool               `json:"halted"`
	DailyLossPct      float64            `json:"daily_loss_pct"`
	DrawdownPct       float64            `json:"drawdown_pct"`
	ConsecutiveLosses int                `json:"consecutive_losses"`
	TradesLastHour    int                `json:"trades_last_hour"`
	GroupUtilization  map[string]float64 `json:"group_utilization"`
}

// Manager owns the circuit breaker and the per-ticker trade pacing
// state. Portfolio state is passed in by the caller; the manager never
// holds it.
type Manager struct {
	cfg    config.RiskConfig
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      BreakerState
	halted     bool // Latched; cleared only by ResetHalt
	lastTrade  map[string]time.Time
	tradeTimes []time.Time // Submissions within the rolling hour
}

// New creates a risk manager.
func New(cfg config.RiskConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		state:     BreakerNormal,
		lastTrade: make(map[string]time.Time),
	}
}

// State returns the breaker state from the last evaluation.
func (m *Manager) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EvaluateBreaker recomputes the breaker from portfolio thresholds.
// Called once per cycle before any candidate is considered. Halted
// latches: once entered it survives any later recovery in the numbers.
func (m *Manager) EvaluateBreaker(p model.PortfolioState) BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	dailyLoss := p.DailyLossPct()
	drawdown := p.DrawdownPct()

	if dailyLoss > m.cfg.MaxDailyLossPct || drawdown > m.cfg.MaxDrawdownPct {
		if !m.halted {
			m.logger.Error("circuit breaker halted",
				"daily_loss_pct", dailyLoss,
				"drawdown_pct", drawdown)
		}
		m.halted = true
	}

	prev := m.state
	switch {
	case m.halted:
		m.state = BreakerHalted
	case dailyLoss > m.cfg.CriticalLossPct || p.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses:
		m.state = BreakerCritical
	case dailyLoss > m.cfg.WarningLossPct:
		m.state = BreakerWarning
	default:
		m.state = BreakerNormal
	}

	if m.state != prev {
		m.logger.Warn("circuit breaker state changed",
			"from", prev.String(),
			"to", m.state.String(),
			"daily_loss_pct", dailyLoss,
			"drawdown_pct", drawdown,
			"consecutive_losses", p.ConsecutiveLosses)
	}
	return m.state
}

// ResetHalt clears the Halted latch. Manual intervention only; the next
// EvaluateBreaker recomputes the state from current thresholds.
func (m *Manager) ResetHalt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halted {
		m.halted = false
		m.logger.Warn("circuit breaker halt manually reset")
	}
}

// CheckTradeRisk runs the fixed-order checks against one candidate.
// First failing check wins:
//
//  1. breaker Halted
//  2. ticker cooldown
//  3. hourly trade-frequency limit
//  4. insufficient edge (threshold doubled under Critical)
//  5. correlation-group concentration
//  6. sized contracts == 0
func (m *Manager) CheckTradeRisk(opp model.Opportunity, p model.PortfolioState) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BreakerHalted {
		return Decision{Reason: ReasonCircuitBreakerHalted, Detail: "breaker halted, manual reset required"}
	}

	now := m.now()
	if last, ok := m.lastTrade[opp.Ticker]; ok && m.cfg.TickerCooldown > 0 {
		if since := now.Sub(last); since < m.cfg.TickerCooldown {
			return Decision{
				Reason: ReasonTickerCooldown,
				Detail: fmt.Sprintf("last trade %s ago, cooldown %s", since.Round(time.Second), m.cfg.TickerCooldown),
			}
		}
	}

	if m.cfg.MaxTradesPerHour > 0 && m.tradesWithinLocked(now, time.Hour) >= m.cfg.MaxTradesPerHour {
		return Decision{
			Reason: ReasonTradeFrequencyLimit,
			Detail: fmt.Sprintf("%d trades in the last hour", m.cfg.MaxTradesPerHour),
		}
	}

	minEdge := m.cfg.MinEdge * m.state.EdgeMultiplier()
	if opp.Edge < minEdge {
		return Decision{
			Reason: ReasonInsufficientEdge,
			Detail: fmt.Sprintf("edge %.4f below threshold %.4f", opp.Edge, minEdge),
		}
	}

	contracts := m.size(opp, p)

	group := m.GroupFor(opp.Ticker)
	current := m.groupExposure(group, p)
	proposed := current + int64(contracts)*int64(opp.EntryPrice)
	capCents := int64(float64(p.EquityCents) * m.groupCap(group))
	if proposed > capCents {
		return Decision{
			Reason: ReasonConcentrationLimit,
			Detail: fmt.Sprintf("group %q exposure %dc + %dc exceeds cap %dc", group, current, proposed-current, capCents),
		}
	}

	if contracts == 0 {
		return Decision{Reason: ReasonSizeTooSmall, Detail: "sized to zero contracts"}
	}

	m.logger.Info("trade approved",
		"ticker", opp.Ticker,
		"strategy", opp.Strategy,
		"side", string(opp.Side),
		"contracts", contracts,
		"edge", opp.Edge,
		"confidence", opp.Confidence,
		"breaker", m.state.String())
	return Decision{Approved: true, Contracts: contracts}
}

// size computes fractional-Kelly contracts capped by the per-position
// limit. Degenerate inputs size to zero, which the caller rejects.
func (m *Manager) size(opp model.Opportunity, p model.PortfolioState) int {
	if opp.EntryPrice <= 0 || opp.EntryPrice >= 100 || p.EquityCents <= 0 {
		return 0
	}

	// edge >= 1 would divide by zero or flip sign: fail closed.
	kelly := 0.0
	if opp.Edge > 0 && opp.Edge < 1 {
		kelly = (opp.Edge * opp.Confidence) / (1 - opp.Edge)
	}

	frac := kelly * m.cfg.KellyFraction * m.state.SizingMultiplier()
	raw := int(math.Floor(float64(p.EquityCents) * frac / float64(opp.EntryPrice)))
	maxContracts := int(math.Floor(float64(p.EquityCents) * m.cfg.MaxPositionPct / float64(opp.EntryPrice)))

	if raw > maxContracts {
		raw = maxContracts
	}
	if raw < 0 {
		raw = 0
	}
	return raw
}

// RecordTrade marks a submitted order for cooldown and frequency
// pacing. Called by the orchestrator after a successful submission.
func (m *Manager) RecordTrade(ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.lastTrade[ticker] = now
	m.tradeTimes = append(m.tradeTimes, now)

	// Prune entries that fell out of the hour window.
	cutoff := now.Add(-time.Hour)
	kept := m.tradeTimes[:0]
	for _, t := range m.tradeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.tradeTimes = kept
}

// ApplyFill applies one fill to a portfolio copy and returns it. This
// is the only place portfolio state changes in response to execution;
// the orchestrator stores the returned copy at cycle end.
func (m *Manager) ApplyFill(fill model.FillResult, p model.PortfolioState) model.PortfolioState {
	out := p.Clone()

	if !fill.Exit {
		// Entry: cash becomes position value, equity unchanged.
		cost := int64(fill.Count) * int64(fill.Price)
		out.CashCents -= cost
		out.Positions = mergePosition(out.Positions, model.Position{
			Ticker:     fill.Ticker,
			Side:       fill.Side,
			Quantity:   fill.Count,
			EntryPrice: fill.Price,
			OpenedAt:   fill.FilledAt,
		})
	} else {
		// Exit or settlement: realize P&L, release the position.
		var costBasis int64
		out.Positions, costBasis = removePosition(out.Positions, fill.Ticker, fill.Side)
		out.CashCents += costBasis + fill.RealizedPnLCents
		out.EquityCents += fill.RealizedPnLCents
		out.DailyPnLCents += fill.RealizedPnLCents

		if fill.RealizedPnLCents < 0 {
			out.ConsecutiveLosses++
		} else {
			out.ConsecutiveLosses = 0
		}
	}

	if out.EquityCents > out.PeakEquityCents {
		out.PeakEquityCents = out.EquityCents
	}
	return out
}

// Report returns the current risk picture.
func (m *Manager) Report(p model.PortfolioState) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make(map[string]float64)
	for _, pos := range p.Positions {
		g := m.GroupFor(pos.Ticker)
		if _, seen := groups[g]; !seen {
			groups[g] = m.utilizationLocked(g, p)
		}
	}

	return Report{
		State:             m.state.String(),
		Halted:            m.halted,
		DailyLossPct:      p.DailyLossPct(),
		DrawdownPct:       p.DrawdownPct(),
		ConsecutiveLosses: p.ConsecutiveLosses,
		TradesLastHour:    m.tradesWithinLocked(m.now(), time.Hour),
		GroupUtilization:  groups,
	}
}

// GroupUtilization returns the fraction of equity committed to the
// ticker's correlation group. Used as the best-candidate tiebreak.
func (m *Manager) GroupUtilization(ticker string, p model.PortfolioState) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utilizationLocked(m.GroupFor(ticker), p)
}

func (m *Manager) utilizationLocked(group string, p model.PortfolioState) float64 {
	if p.EquityCents <= 0 {
		return 0
	}
	return float64(m.groupExposure(group, p)) / float64(p.EquityCents)
}

// GroupFor resolves a ticker's correlation group. Configured groups win
// (exact ticker, then prefix); otherwise the builtin prefix families
// apply, then the ticker's own series prefix, then "general".
func (m *Manager) GroupFor(ticker string) string {
	upper := strings.ToUpper(ticker)

	for _, g := range m.cfg.Groups {
		for _, t := range g.Tickers {
			if strings.EqualFold(t, ticker) {
				return g.Name
			}
		}
		for _, prefix := range g.Prefixes {
			if strings.HasPrefix(upper, strings.ToUpper(prefix)) {
				return g.Name
			}
		}
	}

	switch {
	case hasAnyPrefix(upper, "BTC", "ETH", "KXCRYPTO"):
		return "crypto"
	case hasAnyPrefix(upper, "FED", "KXECON"):
		return "macro"
	case hasAnyPrefix(upper, "INX", "KXINX"):
		return "equity"
	}

	if i := strings.Index(upper, "-"); i > 0 {
		return strings.ToLower(upper[:i])
	}
	return "general"
}

func (m *Manager) groupCap(group string) float64 {
	for _, g := range m.cfg.Groups {
		if g.Name == group && g.MaxExposurePct > 0 {
			return g.MaxExposurePct
		}
	}
	return m.cfg.CorrelationLimitPct
}

func (m *Manager) groupExposure(group string, p model.PortfolioState) int64 {
	var total int64
	for _, pos := range p.Positions {
		if m.GroupFor(pos.Ticker) == group {
			total += pos.CostCents()
		}
	}
	return total
}

func (m *Manager) tradesWithinLocked(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, t := range m.tradeTimes {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func mergePosition(positions []model.Position, add model.Position) []model.Position {
	for i, pos := range positions {
		if pos.Ticker == add.Ticker && pos.Side == add.Side {
			total := pos.Quantity + add.Quantity
			// Weighted average entry, rounded down.
			positions[i].EntryPrice = int((pos.CostCents() + add.CostCents()) / int64(total))
			positions[i].Quantity = total
			return positions
		}
	}
	return append(positions, add)
}

func removePosition(positions []model.Position, ticker string, side model.Side) ([]model.Position, int64) {
	for i, pos := range positions {
		if pos.Ticker == ticker && pos.Side == side {
			cost := pos.CostCents()
			return append(positions[:i], positions[i+1:]...), cost
		}
	}
	return positions, 0
}

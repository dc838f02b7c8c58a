package strategy

import (
	"fmt"
	"log/slog"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// Strategy evaluates a single market and either produces an opportunity
// or declines by returning (nil, nil).
type Strategy interface {
	Name() string
	Evaluate(market model.MarketSnapshot, book model.OrderBookSnapshot) (*model.Opportunity, error)
}

// Manager runs every enabled strategy against a market. Candidates from
// different strategies for the same ticker stay distinct; the risk layer
// decides which one, if any, to act on.
type Manager struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewManager builds the enabled strategies from configuration.
func NewManager(cfg config.StrategiesConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var strategies []Strategy
	for _, name := range cfg.Enabled {
		switch name {
		case "fundamental":
			strategies = append(strategies, NewFundamental(cfg.Fundamental))
		case "momentum":
			strategies = append(strategies, NewMomentum(cfg.Momentum))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies enabled")
	}

	return &Manager{strategies: strategies, logger: logger}, nil
}

// NewManagerWith wraps pre-built strategies. Used by tests and custom
// wiring.
func NewManagerWith(logger *slog.Logger, strategies ...Strategy) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{strategies: strategies, logger: logger}
}

// Names returns the enabled strategy names in run order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name()
	}
	return names
}

// Analyze runs every strategy against one market and collects the
// opportunities. A strategy error or panic is logged and skipped; it
// never blocks the other strategies.
func (m *Manager) Analyze(market model.MarketSnapshot, book model.OrderBookSnapshot) []model.Opportunity {
	var out []model.Opportunity
	for _, s := range m.strategies {
		opp, err := m.evaluate(s, market, book)
		if err != nil {
			m.logger.Warn("strategy evaluation failed",
				"strategy", s.Name(),
				"ticker", market.Ticker,
				"error", err)
			continue
		}
		if opp != nil {
			out = append(out, *opp)
		}
	}
	return out
}

// ClearHistory drops per-ticker state on strategies that keep any.
// The orchestrator calls it when a ticker leaves the scan set.
func (m *Manager) ClearHistory(ticker string) {
	for _, s := range m.strategies {
		if h, ok := s.(interface{ ClearHistory(ticker string) }); ok {
			h.ClearHistory(ticker)
		}
	}
}

// evaluate calls one strategy with panic recovery.
func (m *Manager) evaluate(s Strategy, market model.MarketSnapshot, book model.OrderBookSnapshot) (opp *model.Opportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			opp = nil
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return s.Evaluate(market, book)
}

// topQuantity sums resting contracts across the best n levels.
func topQuantity(levels []model.PriceLevel, n int) int {
	total := 0
	for i, lvl := range levels {
		if i >= n {
			break
		}
		total += lvl.Quantity
	}
	return total
}

// maxQuantity returns the largest resting order across the best n levels.
func maxQuantity(levels []model.PriceLevel, n int) int {
	best := 0
	for i, lvl := range levels {
		if i >= n {
			break
		}
		if lvl.Quantity > best {
			best = lvl.Quantity
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

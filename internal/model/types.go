package model

import "time"

// Side identifies which side of a binary market a trade takes.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// -----------------------------------------------------------------------------
// Market Data
// -----------------------------------------------------------------------------

// MarketSnapshot is an immutable view of one market at fetch time.
// A newer snapshot with the same ticker supersedes it.
type MarketSnapshot struct {
	Ticker string // Primary key (e.g., "KXBTC-25DEC31-B100K")
	Title  string // Display title
	Status string // Status: initialized, active, closed, determined, finalized

	// Current prices (cents, 1-99)
	YesBid    int // Best YES bid
	YesAsk    int // Best YES ask
	NoBid     int // Best NO bid
	NoAsk     int // Best NO ask
	LastPrice int // Last trade price

	// Volume
	Volume       int64 // Total contracts traded
	OpenInterest int64 // Outstanding contracts

	// Timing (µs since epoch)
	CloseTS   int64 // Market close time
	FetchedAt int64 // Time this snapshot was taken
}

// Spread returns the YES bid-ask spread in cents.
func (m MarketSnapshot) Spread() int {
	return m.YesAsk - m.YesBid
}

// ImpliedProbability returns the market-implied YES probability from the
// YES mid price.
func (m MarketSnapshot) ImpliedProbability() float64 {
	return float64(m.YesBid+m.YesAsk) / 200.0
}

// PriceLevel is a single price level in an orderbook.
type PriceLevel struct {
	Price    int // Price (cents, 1-99)
	Quantity int // Contracts resting at this price
}

// OrderBookSnapshot is the full book for one market at fetch time.
// It is only valid for analysis alongside a MarketSnapshot with the
// same ticker fetched within the same cache window.
type OrderBookSnapshot struct {
	Ticker    string       // Market ticker
	YesBids   []PriceLevel // YES buy orders, best first
	YesAsks   []PriceLevel // YES sell orders, best first
	NoBids    []PriceLevel // NO buy orders, best first
	NoAsks    []PriceLevel // NO sell orders, best first
	FetchedAt int64        // Time this snapshot was taken (µs since epoch)
}

// -----------------------------------------------------------------------------
// Opportunities
// -----------------------------------------------------------------------------

// Opportunity is a candidate trade produced by a strategy, prior to risk
// approval and sizing.
type Opportunity struct {
	Ticker      string  // Market ticker
	Strategy    string  // Producing strategy name
	Side        Side    // yes or no
	Probability float64 // Estimated true probability of the chosen side (0-1)
	EntryPrice  int     // Suggested entry price (cents)
	Edge        float64 // Estimated probability minus implied probability (fractional)
	Confidence  float64 // Strategy confidence (0-1)
	RawSize     int     // Pre-risk suggested contracts
	Rationale   string  // Human-readable reasoning
	CreatedAt   int64   // Creation time (µs since epoch)
}

// Score ranks opportunities for best-candidate selection.
func (o Opportunity) Score() float64 {
	return o.Edge * o.Confidence
}

// -----------------------------------------------------------------------------
// Portfolio
// -----------------------------------------------------------------------------

// Position is one open position.
type Position struct {
	Ticker     string
	Side       Side
	Quantity   int   // Contracts
	EntryPrice int   // Cents paid per contract
	OpenedAt   int64 // µs since epoch
}

// CostCents returns the capital committed to the position.
func (p Position) CostCents() int64 {
	return int64(p.Quantity) * int64(p.EntryPrice)
}

// PortfolioState is the portfolio snapshot used for every risk check.
// The orchestrator is the single writer; everyone else receives a copy.
type PortfolioState struct {
	CashCents   int64 // Available cash
	EquityCents int64 // Cash plus position value
	Positions   []Position

	DailyPnLCents     int64 // Realized P&L since start of day
	StartOfDayCents   int64 // Equity at start of day (daily-loss denominator)
	PeakEquityCents   int64 // Running peak equity (drawdown denominator)
	ConsecutiveLosses int   // Losing fills in a row
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (p PortfolioState) Clone() PortfolioState {
	out := p
	out.Positions = make([]Position, len(p.Positions))
	copy(out.Positions, p.Positions)
	return out
}

// DailyLossPct returns the realized daily loss as a fraction of
// start-of-day equity. Gains return 0.
func (p PortfolioState) DailyLossPct() float64 {
	if p.StartOfDayCents <= 0 || p.DailyPnLCents >= 0 {
		return 0
	}
	return float64(-p.DailyPnLCents) / float64(p.StartOfDayCents)
}

// DrawdownPct returns the drop from peak equity as a fraction of the peak.
func (p PortfolioState) DrawdownPct() float64 {
	if p.PeakEquityCents <= 0 || p.EquityCents >= p.PeakEquityCents {
		return 0
	}
	return float64(p.PeakEquityCents-p.EquityCents) / float64(p.PeakEquityCents)
}

// PortfolioBalance is the account balance reported by the exchange.
type PortfolioBalance struct {
	CashCents   int64
	EquityCents int64
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// FillResult reports the outcome of a submitted or settled order.
// Exit distinguishes position-closing fills from entries; a break-even
// exit carries zero realized P&L, so the amount alone cannot.
type FillResult struct {
	OrderID          string
	Ticker           string
	Side             Side
	Price            int  // Cents per contract
	Count            int  // Contracts filled
	Exit             bool // Closes an open position
	RealizedPnLCents int64
	FilledAt         int64 // µs since epoch
}

// TradeRecord summarizes the single trade a cycle executed.
type TradeRecord struct {
	Opportunity Opportunity
	Contracts   int
	Fill        FillResult
}

// -----------------------------------------------------------------------------
// Cycle Events
// -----------------------------------------------------------------------------

// Rejection records one risk rejection within a cycle.
type Rejection struct {
	Ticker   string `json:"ticker"`
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// CycleResult is the structured record the orchestrator emits once per
// cycle for dashboards and persistence.
type CycleResult struct {
	Timestamp       time.Time      `json:"timestamp"`
	MarketsScanned  int            `json:"markets_scanned"`
	Candidates      int            `json:"candidates"`
	Rejections      []Rejection    `json:"rejections,omitempty"`
	Trade           *TradeRecord   `json:"trade,omitempty"`
	TradeError      string         `json:"trade_error,omitempty"`
	BreakerState    string         `json:"breaker_state"`
	TradingActive   bool           `json:"trading_active"`
	Portfolio       PortfolioState `json:"portfolio"`
	CycleDurationMS int64          `json:"cycle_duration_ms"`
}

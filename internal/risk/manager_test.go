package risk

import (
	"testing"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		KellyFraction:        0.25,
		MaxPositionPct:       0.20,
		MaxDailyLossPct:      0.10,
		MaxDrawdownPct:       0.15,
		WarningLossPct:       0.05,
		CriticalLossPct:      0.08,
		MinEdge:              0.02,
		CorrelationLimitPct:  0.25,
		MaxConsecutiveLosses: 5,
		TickerCooldown:       5 * time.Minute,
		MaxTradesPerHour:     10,
	}
}

// portfolio builds a flat portfolio with the given equity in cents.
func portfolio(equityCents int64) model.PortfolioState {
	return model.PortfolioState{
		CashCents:       equityCents,
		EquityCents:     equityCents,
		StartOfDayCents: equityCents,
		PeakEquityCents: equityCents,
	}
}

func candidate(ticker string, edge, confidence float64, price int) model.Opportunity {
	return model.Opportunity{
		Ticker:      ticker,
		Strategy:    "fundamental",
		Side:        model.SideYes,
		Edge:        edge,
		Confidence:  confidence,
		EntryPrice:  price,
		Probability: 0.5 + edge,
	}
}

func TestEvaluateBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		dailyPnL   int64
		equity     int64
		peak       int64
		lossStreak int
		want       BreakerState
	}{
		{"flat day", 0, 100000, 100000, 0, BreakerNormal},
		{"small loss", -3000, 97000, 100000, 0, BreakerNormal},
		{"boundary 5pct stays normal", -5000, 95000, 100000, 0, BreakerNormal},
		{"warning above 5pct", -6000, 94000, 100000, 0, BreakerWarning},
		{"critical above 8pct", -8100, 91900, 100000, 0, BreakerCritical},
		{"critical on loss streak", -1000, 99000, 100000, 5, BreakerCritical},
		{"halted above 10pct daily", -10100, 89900, 100000, 0, BreakerHalted},
		{"halted on 16pct drawdown", 0, 84000, 100000, 0, BreakerHalted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(testRiskConfig(), nil)
			p := model.PortfolioState{
				EquityCents:       tt.equity,
				DailyPnLCents:     tt.dailyPnL,
				StartOfDayCents:   100000,
				PeakEquityCents:   tt.peak,
				ConsecutiveLosses: tt.lossStreak,
			}
			if got := m.EvaluateBreaker(p); got != tt.want {
				t.Errorf("EvaluateBreaker() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateBreaker_HaltLatches(t *testing.T) {
	m := New(testRiskConfig(), nil)

	losing := model.PortfolioState{
		EquityCents: 89000, DailyPnLCents: -11000,
		StartOfDayCents: 100000, PeakEquityCents: 100000,
	}
	if got := m.EvaluateBreaker(losing); got != BreakerHalted {
		t.Fatalf("EvaluateBreaker(losing) = %v, want halted", got)
	}

	// Numbers recover, state must not.
	recovered := portfolio(100000)
	if got := m.EvaluateBreaker(recovered); got != BreakerHalted {
		t.Errorf("EvaluateBreaker(recovered) = %v, want halted (latched)", got)
	}

	m.ResetHalt()
	if got := m.EvaluateBreaker(recovered); got != BreakerNormal {
		t.Errorf("EvaluateBreaker() after ResetHalt = %v, want normal", got)
	}
}

func TestCheckTradeRisk_KellySizing(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)

	// kelly = (0.05*0.8)/0.95 = 0.042105, quarter Kelly 0.010526,
	// contracts = floor(10000 * 0.010526 / 50) = 2.
	d := m.CheckTradeRisk(candidate("KXBTC-A", 0.05, 0.8, 50), p)
	if !d.Approved {
		t.Fatalf("CheckTradeRisk() rejected: %s (%s)", d.Reason, d.Detail)
	}
	if d.Contracts != 2 {
		t.Errorf("Contracts = %d, want 2", d.Contracts)
	}
}

func TestCheckTradeRisk_BreakerScalesSize(t *testing.T) {
	m := New(testRiskConfig(), nil)
	opp := candidate("KXBTC-A", 0.05, 0.8, 50)

	// Warning halves the Kelly fraction: floor(1.05) = 1.
	warning := model.PortfolioState{
		CashCents: 10000, EquityCents: 10000, DailyPnLCents: -600,
		StartOfDayCents: 10000, PeakEquityCents: 10600,
	}
	m.EvaluateBreaker(warning)
	d := m.CheckTradeRisk(opp, warning)
	if !d.Approved || d.Contracts != 1 {
		t.Errorf("under warning: (%v, %d), want approved with 1", d.Approved, d.Contracts)
	}

	// Critical quarters it and sizes to zero.
	critical := model.PortfolioState{
		CashCents: 10000, EquityCents: 10000, DailyPnLCents: -900,
		StartOfDayCents: 10000, PeakEquityCents: 10900,
	}
	m.EvaluateBreaker(critical)
	d = m.CheckTradeRisk(opp, critical)
	if d.Approved || d.Reason != ReasonSizeTooSmall {
		t.Errorf("under critical: (%v, %s), want SizeTooSmall", d.Approved, d.Reason)
	}
}

func TestCheckTradeRisk_CriticalRaisesEdgeThreshold(t *testing.T) {
	m := New(testRiskConfig(), nil)
	critical := model.PortfolioState{
		CashCents: 100000, EquityCents: 100000, DailyPnLCents: -9000,
		StartOfDayCents: 100000, PeakEquityCents: 109000,
	}
	m.EvaluateBreaker(critical)

	// Edge 0.03 clears the normal 0.02 threshold but not the doubled one.
	d := m.CheckTradeRisk(candidate("KXBTC-A", 0.03, 0.9, 50), critical)
	if d.Approved || d.Reason != ReasonInsufficientEdge {
		t.Errorf("(%v, %s), want InsufficientEdge under critical", d.Approved, d.Reason)
	}
}

func TestCheckTradeRisk_MaxPositionCap(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(1000000)

	// Edge 0.6 at full confidence sizes to 37500 contracts, well past
	// the 20% position cap of floor(1000000 * 0.20 / 10) = 20000.
	cfg := testRiskConfig()
	cfg.CorrelationLimitPct = 0.5
	m = New(cfg, nil)

	d := m.CheckTradeRisk(candidate("KXBTC-A", 0.60, 1.0, 10), p)
	if !d.Approved {
		t.Fatalf("CheckTradeRisk() rejected: %s (%s)", d.Reason, d.Detail)
	}
	if want := 20000; d.Contracts != want {
		t.Errorf("Contracts = %d, want %d (position cap)", d.Contracts, want)
	}
}

func TestCheckTradeRisk_EdgeAtOrAboveOneFailsClosed(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)

	d := m.CheckTradeRisk(candidate("KXBTC-A", 1.0, 1.0, 50), p)
	if d.Approved {
		t.Fatal("edge >= 1 must not approve")
	}
	if d.Reason != ReasonSizeTooSmall {
		t.Errorf("Reason = %s, want SizeTooSmall", d.Reason)
	}
}

func TestCheckTradeRisk_InvalidEntryPrice(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)

	for _, price := range []int{0, -5, 100, 150} {
		d := m.CheckTradeRisk(candidate("KXBTC-A", 0.05, 0.8, price), p)
		if d.Approved {
			t.Errorf("price %d approved, want rejection", price)
		}
	}
}

func TestCheckTradeRisk_ConcentrationLimit(t *testing.T) {
	m := New(testRiskConfig(), nil)

	p := portfolio(10000)
	p.Positions = []model.Position{
		{Ticker: "KXBTC-X", Side: model.SideYes, Quantity: 49, EntryPrice: 50},
	}

	// Existing crypto exposure 2450c; cap is 2500c. Two contracts at
	// 50c would push it to 2550c.
	d := m.CheckTradeRisk(candidate("KXBTC-Y", 0.05, 0.8, 50), p)
	if d.Approved || d.Reason != ReasonConcentrationLimit {
		t.Errorf("(%v, %s), want ConcentrationLimit", d.Approved, d.Reason)
	}

	// An unrelated group is unaffected.
	d = m.CheckTradeRisk(candidate("FED-RATE", 0.05, 0.8, 50), p)
	if !d.Approved {
		t.Errorf("unrelated group rejected: %s (%s)", d.Reason, d.Detail)
	}
}

func TestCheckTradeRisk_ConfiguredGroupCap(t *testing.T) {
	cfg := testRiskConfig()
	cfg.Groups = []config.GroupConfig{
		{Name: "elections", Prefixes: []string{"PRES"}, MaxExposurePct: 0.05},
	}
	m := New(cfg, nil)

	p := portfolio(10000)
	p.Positions = []model.Position{
		{Ticker: "PRES-2028", Side: model.SideYes, Quantity: 9, EntryPrice: 50},
	}

	// Group cap 500c, existing 450c, proposed adds 100c.
	d := m.CheckTradeRisk(candidate("PRES-SENATE", 0.05, 0.8, 50), p)
	if d.Approved || d.Reason != ReasonConcentrationLimit {
		t.Errorf("(%v, %s), want ConcentrationLimit from configured cap", d.Approved, d.Reason)
	}
}

func TestCheckTradeRisk_RejectionOrder(t *testing.T) {
	// A candidate failing several checks at once must report the first
	// failing check in the fixed order.
	cfg := testRiskConfig()
	m := New(cfg, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	bad := candidate("KXBTC-A", 0.001, 0.1, 50) // Edge far below threshold
	p := portfolio(10000)

	// Halted beats everything.
	halted := model.PortfolioState{
		EquityCents: 85000, DailyPnLCents: -15000,
		StartOfDayCents: 100000, PeakEquityCents: 100000,
	}
	m.EvaluateBreaker(halted)
	if d := m.CheckTradeRisk(bad, halted); d.Reason != ReasonCircuitBreakerHalted {
		t.Errorf("Reason = %s, want CircuitBreakerHalted", d.Reason)
	}

	m.ResetHalt()
	m.EvaluateBreaker(p)

	// Cooldown beats frequency and edge.
	m.RecordTrade("KXBTC-A")
	now = now.Add(time.Minute)
	if d := m.CheckTradeRisk(bad, p); d.Reason != ReasonTickerCooldown {
		t.Errorf("Reason = %s, want TickerCooldown", d.Reason)
	}

	// Frequency beats edge once the cooldown has lapsed.
	for i := 0; i < 10; i++ {
		m.RecordTrade("OTHER")
	}
	now = now.Add(10 * time.Minute)
	if d := m.CheckTradeRisk(bad, p); d.Reason != ReasonTradeFrequencyLimit {
		t.Errorf("Reason = %s, want TradeFrequencyLimit", d.Reason)
	}

	// Past the hour window, edge is finally the failing check.
	now = now.Add(time.Hour)
	if d := m.CheckTradeRisk(bad, p); d.Reason != ReasonInsufficientEdge {
		t.Errorf("Reason = %s, want InsufficientEdge", d.Reason)
	}
}

func TestCheckTradeRisk_CooldownExpires(t *testing.T) {
	m := New(testRiskConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	p := portfolio(10000)
	opp := candidate("KXBTC-A", 0.05, 0.8, 50)

	m.RecordTrade("KXBTC-A")

	now = now.Add(4 * time.Minute)
	if d := m.CheckTradeRisk(opp, p); d.Reason != ReasonTickerCooldown {
		t.Fatalf("at 4m: Reason = %s, want TickerCooldown", d.Reason)
	}

	now = now.Add(2 * time.Minute)
	if d := m.CheckTradeRisk(opp, p); !d.Approved {
		t.Errorf("at 6m: rejected with %s, want approval", d.Reason)
	}
}

func TestRecordTrade_PrunesHourWindow(t *testing.T) {
	m := New(testRiskConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		m.RecordTrade("T")
		now = now.Add(time.Minute)
	}

	p := portfolio(10000)
	opp := candidate("FRESH-A", 0.05, 0.8, 50)
	if d := m.CheckTradeRisk(opp, p); d.Reason != ReasonTradeFrequencyLimit {
		t.Fatalf("Reason = %s, want TradeFrequencyLimit", d.Reason)
	}

	// 70 minutes later the oldest submissions have aged out.
	now = now.Add(70 * time.Minute)
	if d := m.CheckTradeRisk(opp, p); !d.Approved {
		t.Errorf("after window: rejected with %s, want approval", d.Reason)
	}
}

func TestApplyFill_Entry(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)

	out := m.ApplyFill(model.FillResult{
		Ticker: "KXBTC-A", Side: model.SideYes, Price: 50, Count: 2,
	}, p)

	if out.CashCents != 9900 {
		t.Errorf("CashCents = %d, want 9900", out.CashCents)
	}
	if out.EquityCents != 10000 {
		t.Errorf("EquityCents = %d, want 10000 (entries preserve equity)", out.EquityCents)
	}
	if len(out.Positions) != 1 || out.Positions[0].Quantity != 2 {
		t.Fatalf("Positions = %+v, want one 2-contract position", out.Positions)
	}
	// Input untouched.
	if p.CashCents != 10000 || len(p.Positions) != 0 {
		t.Error("ApplyFill mutated its input")
	}
}

func TestApplyFill_MergesSameSidePosition(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)
	p.Positions = []model.Position{
		{Ticker: "T", Side: model.SideYes, Quantity: 2, EntryPrice: 40},
	}

	out := m.ApplyFill(model.FillResult{Ticker: "T", Side: model.SideYes, Price: 60, Count: 2}, p)
	if len(out.Positions) != 1 {
		t.Fatalf("len(Positions) = %d, want 1 (merged)", len(out.Positions))
	}
	pos := out.Positions[0]
	if pos.Quantity != 4 || pos.EntryPrice != 50 {
		t.Errorf("merged position = %+v, want 4 @ 50", pos)
	}
}

func TestApplyFill_WinResetsStreak(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)
	p.CashCents = 9900
	p.Positions = []model.Position{{Ticker: "T", Side: model.SideYes, Quantity: 2, EntryPrice: 50}}
	p.ConsecutiveLosses = 3

	out := m.ApplyFill(model.FillResult{Ticker: "T", Side: model.SideYes, Exit: true, RealizedPnLCents: 300}, p)

	if out.CashCents != 10300 {
		t.Errorf("CashCents = %d, want 10300", out.CashCents)
	}
	if out.EquityCents != 10300 {
		t.Errorf("EquityCents = %d, want 10300", out.EquityCents)
	}
	if out.DailyPnLCents != 300 {
		t.Errorf("DailyPnLCents = %d, want 300", out.DailyPnLCents)
	}
	if out.ConsecutiveLosses != 0 {
		t.Errorf("ConsecutiveLosses = %d, want 0", out.ConsecutiveLosses)
	}
	if out.PeakEquityCents != 10300 {
		t.Errorf("PeakEquityCents = %d, want 10300", out.PeakEquityCents)
	}
	if len(out.Positions) != 0 {
		t.Errorf("Positions = %+v, want released", out.Positions)
	}
}

func TestApplyFill_LossExtendsStreak(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)
	p.CashCents = 9900
	p.Positions = []model.Position{{Ticker: "T", Side: model.SideYes, Quantity: 2, EntryPrice: 50}}
	p.ConsecutiveLosses = 2

	out := m.ApplyFill(model.FillResult{Ticker: "T", Side: model.SideYes, Exit: true, RealizedPnLCents: -60}, p)

	if out.EquityCents != 9940 {
		t.Errorf("EquityCents = %d, want 9940", out.EquityCents)
	}
	if out.ConsecutiveLosses != 3 {
		t.Errorf("ConsecutiveLosses = %d, want 3", out.ConsecutiveLosses)
	}
	if out.PeakEquityCents != 10000 {
		t.Errorf("PeakEquityCents = %d, want 10000 (peak never falls)", out.PeakEquityCents)
	}
}

func TestApplyFill_BreakEvenExitReleasesPosition(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)
	p.CashCents = 9900
	p.Positions = []model.Position{{Ticker: "T", Side: model.SideYes, Quantity: 2, EntryPrice: 50}}
	p.ConsecutiveLosses = 2

	// Zero P&L must still book as an exit, not a second entry.
	out := m.ApplyFill(model.FillResult{Ticker: "T", Side: model.SideYes, Exit: true, RealizedPnLCents: 0}, p)

	if len(out.Positions) != 0 {
		t.Errorf("Positions = %+v, want released", out.Positions)
	}
	if out.CashCents != 10000 {
		t.Errorf("CashCents = %d, want 10000 (basis returned)", out.CashCents)
	}
	if out.EquityCents != 10000 {
		t.Errorf("EquityCents = %d, want 10000", out.EquityCents)
	}
	if out.ConsecutiveLosses != 0 {
		t.Errorf("ConsecutiveLosses = %d, want 0 (break-even is not a loss)", out.ConsecutiveLosses)
	}
}

func TestCheckTradeRisk_RepeatedCallSameDecision(t *testing.T) {
	m := New(testRiskConfig(), nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	// Pacing state on another ticker and a prior trade in the hour
	// window: the call must read state without advancing it.
	m.lastTrade["KXETH-B"] = fixed.Add(-10 * time.Minute)
	m.tradeTimes = []time.Time{fixed.Add(-30 * time.Minute)}

	p := portfolio(10000)

	approved := candidate("KXBTC-A", 0.05, 0.8, 50)
	if first, second := m.CheckTradeRisk(approved, p), m.CheckTradeRisk(approved, p); first != second {
		t.Errorf("repeated CheckTradeRisk diverged: %+v then %+v", first, second)
	}

	// A cooled-down ticker must reject identically both times.
	m.lastTrade["KXBTC-A"] = fixed.Add(-time.Minute)
	if first, second := m.CheckTradeRisk(approved, p), m.CheckTradeRisk(approved, p); first != second {
		t.Errorf("repeated rejection diverged: %+v then %+v", first, second)
	}
}

func TestCheckTradeRisk_NonPositiveEdgeNeverApproved(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)

	for _, edge := range []float64{0, -0.05} {
		d := m.CheckTradeRisk(candidate("KXBTC-A", edge, 0.9, 50), p)
		if d.Approved {
			t.Errorf("edge %.2f approved, want rejection", edge)
		}
		if d.Reason != ReasonInsufficientEdge {
			t.Errorf("edge %.2f Reason = %s, want InsufficientEdge", edge, d.Reason)
		}
	}
}

func TestGroupFor(t *testing.T) {
	tests := []struct {
		ticker string
		want   string
	}{
		{"KXBTC-25DEC31-B100K", "crypto"},
		{"BTCUSD-H", "crypto"},
		{"ETH-ABOVE-4K", "crypto"},
		{"FED-DEC-HIKE", "macro"},
		{"KXECON-CPI", "macro"},
		{"INXD-UP", "equity"},
		{"KXINX-CLOSE", "equity"},
		{"WEATHER-NYC", "weather"},
		{"SINGLETON", "general"},
	}
	m := New(testRiskConfig(), nil)
	for _, tt := range tests {
		if got := m.GroupFor(tt.ticker); got != tt.want {
			t.Errorf("GroupFor(%q) = %q, want %q", tt.ticker, got, tt.want)
		}
	}
}

func TestGroupFor_ConfiguredGroupsWin(t *testing.T) {
	cfg := testRiskConfig()
	cfg.Groups = []config.GroupConfig{
		{Name: "rates", Prefixes: []string{"FED"}, Tickers: []string{"SINGLETON"}},
	}
	m := New(cfg, nil)

	if got := m.GroupFor("FED-DEC-HIKE"); got != "rates" {
		t.Errorf("GroupFor(FED-DEC-HIKE) = %q, want rates", got)
	}
	if got := m.GroupFor("SINGLETON"); got != "rates" {
		t.Errorf("GroupFor(SINGLETON) = %q, want rates", got)
	}
}

func TestReport(t *testing.T) {
	m := New(testRiskConfig(), nil)
	p := portfolio(10000)
	p.Positions = []model.Position{
		{Ticker: "KXBTC-X", Side: model.SideYes, Quantity: 10, EntryPrice: 50},
	}
	p.DailyPnLCents = -300

	m.EvaluateBreaker(p)
	m.RecordTrade("KXBTC-X")

	r := m.Report(p)
	if r.State != "normal" {
		t.Errorf("State = %q, want normal", r.State)
	}
	if r.TradesLastHour != 1 {
		t.Errorf("TradesLastHour = %d, want 1", r.TradesLastHour)
	}
	if got := r.GroupUtilization["crypto"]; got != 0.05 {
		t.Errorf("crypto utilization = %v, want 0.05", got)
	}
	if r.DailyLossPct != 0.03 {
		t.Errorf("DailyLossPct = %v, want 0.03", r.DailyLossPct)
	}
}

package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// confidenceBoost scales the combined confidence factors before the
// final clamp.
const confidenceBoost = 1.5

// Fundamental estimates a fair probability for the YES outcome from the
// mid price, top-of-book imbalance, and the last trade, then looks for
// markets priced away from that fair value on either side.
type Fundamental struct {
	minEdge      float64 // Fractional edge required to produce a candidate
	maxSpreadPct float64 // Fractional YES spread above which markets are skipped
}

// NewFundamental creates a fair-value strategy.
func NewFundamental(cfg config.FundamentalConfig) *Fundamental {
	return &Fundamental{
		minEdge:      cfg.MinEdge,
		maxSpreadPct: cfg.MaxSpreadPct,
	}
}

func (f *Fundamental) Name() string { return "fundamental" }

// Evaluate declines on wide spreads, estimates fair probability, and
// produces a candidate on the side with the larger edge when that edge
// clears the strategy threshold.
func (f *Fundamental) Evaluate(market model.MarketSnapshot, book model.OrderBookSnapshot) (*model.Opportunity, error) {
	spreadPct := 1.0
	if market.YesBid > 0 {
		spreadPct = float64(market.Spread()) / 100.0
	}
	if spreadPct > f.maxSpreadPct {
		return nil, nil
	}

	fairProb := f.fairProbability(market, book)

	yesEdge := fairProb - float64(market.YesAsk)/100.0
	noEdge := (1 - fairProb) - float64(market.NoAsk)/100.0

	side, edge := model.SideYes, yesEdge
	if noEdge > yesEdge {
		side, edge = model.SideNo, noEdge
	}
	if edge < f.minEdge {
		return nil, nil
	}

	entry := market.YesAsk
	prob := fairProb
	if side == model.SideNo {
		entry = market.NoAsk
		prob = 1 - fairProb
	}
	if entry <= 0 {
		entry = 50
	}

	return &model.Opportunity{
		Ticker:      market.Ticker,
		Strategy:    f.Name(),
		Side:        side,
		Probability: prob,
		EntryPrice:  entry,
		Edge:        edge,
		Confidence:  f.confidence(market, spreadPct, fairProb),
		RawSize:     1,
		Rationale:   fmt.Sprintf("fair=%.2f spread=%.1f%% vol=%d", fairProb, spreadPct*100, market.Volume),
		CreatedAt:   time.Now().UnixMicro(),
	}, nil
}

// fairProbability blends the mid price, the top-3 book imbalance, and
// the last trade price. The imbalance tilt is capped at +/-0.2 before
// blending 70% book-derived, 30% last trade.
func (f *Fundamental) fairProbability(market model.MarketSnapshot, book model.OrderBookSnapshot) float64 {
	mid := float64(market.YesBid+market.YesAsk) / 200.0

	imbalance := 0.0
	bidVol := topQuantity(book.YesBids, 3)
	askVol := topQuantity(book.YesAsks, 3)
	if total := bidVol + askVol; total > 0 {
		imbalance = (float64(bidVol)/float64(total) - 0.5) * 0.4
	}

	fair := clamp(mid+imbalance, 0.01, 0.99)

	if market.LastPrice > 0 {
		fair = 0.7*fair + 0.3*float64(market.LastPrice)/100.0
	}
	return fair
}

// confidence combines spread tightness, traded volume, and the distance
// of the fair probability from a coin flip.
func (f *Fundamental) confidence(market model.MarketSnapshot, spreadPct, fairProb float64) float64 {
	spreadFactor := 1.0 - math.Min(spreadPct*5, 0.5)
	liquidityFactor := math.Min(float64(market.Volume)/10000.0, 1.0)
	probDistance := math.Abs(fairProb-0.5) * 2

	return clamp(spreadFactor*liquidityFactor*probDistance*confidenceBoost, 0, 1)
}

package api

import (
	"sort"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToSnapshot converts an APIMarket to a model.MarketSnapshot.
func (m *APIMarket) ToSnapshot() model.MarketSnapshot {
	return model.MarketSnapshot{
		Ticker:       m.Ticker,
		Title:        m.Title,
		Status:       m.Status,
		YesBid:       m.YesBid,
		YesAsk:       m.YesAsk,
		NoBid:        m.NoBid,
		NoAsk:        m.NoAsk,
		LastPrice:    m.LastPrice,
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		CloseTS:      ParseTimestamp(m.CloseTime),
		FetchedAt:    NowMicro(),
	}
}

// ToSnapshot converts an OrderbookResponse to a model.OrderBookSnapshot.
// Kalshi reports resting YES bids and NO bids; the opposing asks are
// derived (a resting NO bid at p is a YES ask at 100-p).
func (o *OrderbookResponse) ToSnapshot(ticker string) model.OrderBookSnapshot {
	yesBids := toLevels(o.Orderbook.Yes)
	noBids := toLevels(o.Orderbook.No)

	return model.OrderBookSnapshot{
		Ticker:    ticker,
		YesBids:   yesBids,
		YesAsks:   derivedAsks(noBids),
		NoBids:    noBids,
		NoAsks:    derivedAsks(yesBids),
		FetchedAt: NowMicro(),
	}
}

// toLevels converts [price, quantity] pairs to price levels, best bid first.
func toLevels(raw [][]int) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) >= 2 {
			levels = append(levels, model.PriceLevel{Price: pair[0], Quantity: pair[1]})
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels
}

// derivedAsks mirrors the opposite side's bids into asks, best ask first.
func derivedAsks(bids []model.PriceLevel) []model.PriceLevel {
	asks := make([]model.PriceLevel, 0, len(bids))
	for _, b := range bids {
		asks = append(asks, model.PriceLevel{Price: 100 - b.Price, Quantity: b.Quantity})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return asks
}

// ToBalance converts a BalanceResponse to a model.PortfolioBalance.
// Kalshi reports cash balance and open-position payout value separately.
func (b *BalanceResponse) ToBalance() model.PortfolioBalance {
	return model.PortfolioBalance{
		CashCents:   b.Balance,
		EquityCents: b.Balance + b.Payout,
	}
}

// ToPosition converts an exchange position. The sign of the contract
// count carries the side; ok is false for flat entries. The entry
// price is reconstructed from the total exposure, which is what the
// concentration checks consume.
func (p *APIPosition) ToPosition() (model.Position, bool) {
	qty := p.Position
	if qty == 0 {
		return model.Position{}, false
	}
	side := model.SideYes
	if qty < 0 {
		side = model.SideNo
		qty = -qty
	}
	return model.Position{
		Ticker:     p.Ticker,
		Side:       side,
		Quantity:   qty,
		EntryPrice: int(p.MarketExposure) / qty,
	}, true
}

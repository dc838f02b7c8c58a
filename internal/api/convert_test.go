package api

import (
	"testing"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{
			name:  "RFC3339",
			input: "2026-01-15T12:00:00Z",
			want:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC).UnixMicro(),
		},
		{
			name:  "no timezone",
			input: "2026-01-15T12:00:00",
			want:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC).UnixMicro(),
		},
		{
			name:  "empty",
			input: "",
			want:  0,
		},
		{
			name:  "garbage",
			input: "not-a-time",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTimestamp(tt.input); got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestAPIMarket_ToSnapshot(t *testing.T) {
	m := APIMarket{
		Ticker:       "KXBTC-25DEC31-B100K",
		Title:        "Bitcoin above 100k",
		Status:       "active",
		YesBid:       48,
		YesAsk:       52,
		NoBid:        48,
		NoAsk:        52,
		LastPrice:    50,
		Volume:       12000,
		OpenInterest: 3000,
		CloseTime:    "2025-12-31T23:59:00Z",
	}

	snap := m.ToSnapshot()

	if snap.Ticker != m.Ticker {
		t.Errorf("Ticker = %s, want %s", snap.Ticker, m.Ticker)
	}
	if snap.YesBid != 48 || snap.YesAsk != 52 {
		t.Errorf("prices = %d/%d, want 48/52", snap.YesBid, snap.YesAsk)
	}
	if snap.CloseTS != ParseTimestamp(m.CloseTime) {
		t.Errorf("CloseTS = %d, want %d", snap.CloseTS, ParseTimestamp(m.CloseTime))
	}
	if snap.FetchedAt == 0 {
		t.Error("FetchedAt not set")
	}
	if got := snap.ImpliedProbability(); got != 0.5 {
		t.Errorf("ImpliedProbability() = %f, want 0.5", got)
	}
}

func TestOrderbookResponse_ToSnapshot_LevelOrdering(t *testing.T) {
	resp := OrderbookResponse{
		Orderbook: APIOrderbook{
			Yes: [][]int{{40, 10}, {45, 20}, {42, 5}},
			No:  [][]int{{50, 7}, {55, 3}},
		},
	}

	book := resp.ToSnapshot("T")

	// Bids sorted best (highest) first.
	wantYesBids := []int{45, 42, 40}
	for i, want := range wantYesBids {
		if book.YesBids[i].Price != want {
			t.Errorf("YesBids[%d].Price = %d, want %d", i, book.YesBids[i].Price, want)
		}
	}

	// Asks derive from opposite bids, best (lowest) first: 100-55=45, 100-50=50.
	if book.YesAsks[0].Price != 45 || book.YesAsks[1].Price != 50 {
		t.Errorf("YesAsks = [%d %d], want [45 50]", book.YesAsks[0].Price, book.YesAsks[1].Price)
	}
	if book.NoAsks[0].Price != 55 {
		t.Errorf("NoAsks[0].Price = %d, want 55", book.NoAsks[0].Price)
	}
}

func TestOrderbookResponse_ToSnapshot_SkipsMalformedLevels(t *testing.T) {
	resp := OrderbookResponse{
		Orderbook: APIOrderbook{
			Yes: [][]int{{40}, {45, 20}},
		},
	}

	book := resp.ToSnapshot("T")
	if len(book.YesBids) != 1 {
		t.Fatalf("len(YesBids) = %d, want 1", len(book.YesBids))
	}
	if book.YesBids[0].Price != 45 {
		t.Errorf("YesBids[0].Price = %d, want 45", book.YesBids[0].Price)
	}
}

func TestBalanceResponse_ToBalance(t *testing.T) {
	b := BalanceResponse{Balance: 10000, Payout: 2500}
	got := b.ToBalance()
	if got.CashCents != 10000 {
		t.Errorf("CashCents = %d, want 10000", got.CashCents)
	}
	if got.EquityCents != 12500 {
		t.Errorf("EquityCents = %d, want 12500", got.EquityCents)
	}
}

func TestAPIPosition_ToPosition(t *testing.T) {
	tests := []struct {
		name string
		in   APIPosition
		want model.Position
		ok   bool
	}{
		{
			name: "yes side",
			in:   APIPosition{Ticker: "KXBTC-A", Position: 4, MarketExposure: 200},
			want: model.Position{Ticker: "KXBTC-A", Side: model.SideYes, Quantity: 4, EntryPrice: 50},
			ok:   true,
		},
		{
			name: "no side from negative count",
			in:   APIPosition{Ticker: "FED-B", Position: -10, MarketExposure: 300},
			want: model.Position{Ticker: "FED-B", Side: model.SideNo, Quantity: 10, EntryPrice: 30},
			ok:   true,
		},
		{
			name: "flat entry skipped",
			in:   APIPosition{Ticker: "INX-C", Position: 0, MarketExposure: 0},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.ToPosition()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ToPosition() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

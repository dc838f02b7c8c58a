package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// volumeConfirmThreshold is the volume-vs-average ratio above which a
// price move counts as volume-confirmed.
const volumeConfirmThreshold = 1.5

// Momentum looks for sustained price moves confirmed by volume and
// order flow. It keeps a rolling per-ticker history across cycles, so
// unlike the fair-value strategy it is stateful and guards that state
// with a mutex.
type Momentum struct {
	lookback      int
	threshold     float64 // Minimum absolute combined signal
	minConfidence float64

	mu      sync.Mutex
	prices  map[string][]float64
	volumes map[string][]float64
}

// NewMomentum creates a momentum strategy.
func NewMomentum(cfg config.MomentumConfig) *Momentum {
	return &Momentum{
		lookback:      cfg.LookbackPeriods,
		threshold:     cfg.MomentumThreshold,
		minConfidence: cfg.MinConfidence,
		prices:        make(map[string][]float64),
		volumes:       make(map[string][]float64),
	}
}

func (s *Momentum) Name() string { return "momentum" }

// Evaluate records the current observation and declines until enough
// history has accumulated, then combines price momentum, volume
// momentum, and order-flow imbalance into a directional signal.
func (s *Momentum) Evaluate(market model.MarketSnapshot, book model.OrderBookSnapshot) (*model.Opportunity, error) {
	price := currentProbability(market, book)
	volume := float64(market.Volume)

	s.mu.Lock()
	prices, volumes := s.observe(market.Ticker, price, volume)
	s.mu.Unlock()

	if len(prices) < s.lookback {
		return nil, nil
	}

	priceMom := priceMomentum(prices)
	volumeMom := volumeMomentum(volumes)
	flow := flowSignal(book)

	combined := combineSignals(priceMom, volumeMom, flow)
	if math.Abs(combined) < s.threshold {
		return nil, nil
	}

	conf := momentumConfidence(priceMom, volumeMom, flow)
	if conf < s.minConfidence {
		return nil, nil
	}

	side := model.SideYes
	if combined < 0 {
		side = model.SideNo
	}

	prob := clamp(0.5+combined*0.5, 0.05, 0.95)
	if side == model.SideNo {
		prob = 1 - prob
	}

	entry := market.YesAsk
	if side == model.SideNo {
		entry = market.NoAsk
	}
	if entry <= 0 {
		entry = 50
	}

	return &model.Opportunity{
		Ticker:      market.Ticker,
		Strategy:    s.Name(),
		Side:        side,
		Probability: prob,
		EntryPrice:  entry,
		Edge:        math.Abs(combined),
		Confidence:  conf,
		RawSize:     1,
		Rationale:   fmt.Sprintf("price=%.3f volume=%.2fx flow=%.3f", priceMom, volumeMom, flow),
		CreatedAt:   time.Now().UnixMicro(),
	}, nil
}

// ClearHistory drops the rolling history for one ticker, or for all
// tickers when ticker is empty. Called when markets leave the scan set.
func (s *Momentum) ClearHistory(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticker == "" {
		s.prices = make(map[string][]float64)
		s.volumes = make(map[string][]float64)
		return
	}
	delete(s.prices, ticker)
	delete(s.volumes, ticker)
}

// observe appends one observation, trimming history to twice the
// lookback window. Caller holds the mutex.
func (s *Momentum) observe(ticker string, price, volume float64) ([]float64, []float64) {
	maxLen := s.lookback * 2
	p := append(s.prices[ticker], price)
	v := append(s.volumes[ticker], volume)
	if len(p) > maxLen {
		p = p[len(p)-maxLen:]
		v = v[len(v)-maxLen:]
	}
	s.prices[ticker] = p
	s.volumes[ticker] = v

	// Copies so signal math never races a later observe.
	return append([]float64(nil), p...), append([]float64(nil), v...)
}

// currentProbability derives the YES mid as a probability, preferring
// the orderbook over the listing snapshot.
func currentProbability(market model.MarketSnapshot, book model.OrderBookSnapshot) float64 {
	if len(book.YesBids) > 0 && len(book.YesAsks) > 0 {
		return float64(book.YesBids[0].Price+book.YesAsks[0].Price) / 200.0
	}
	if market.YesBid > 0 && market.YesAsk > 0 {
		return float64(market.YesBid+market.YesAsk) / 200.0
	}
	if market.LastPrice > 0 {
		return float64(market.LastPrice) / 100.0
	}
	return 0.5
}

// priceMomentum weights a short-term move over the last 3 observations
// with the average per-period drift across the whole window.
func priceMomentum(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}

	st := 0.0
	if base := prices[len(prices)-3]; base != 0 {
		st = (prices[len(prices)-1] - base) / base
	}
	mt := 0.0
	if prices[0] != 0 {
		mt = (prices[len(prices)-1] - prices[0]) / float64(len(prices))
	}
	return 0.7*st + 0.3*mt
}

// volumeMomentum is the latest cumulative volume relative to the window
// average. 1.0 means no acceleration.
func volumeMomentum(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 1.0
	}
	sum := 0.0
	for _, v := range volumes[:len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(len(volumes)-1)
	if avg == 0 {
		return 1.0
	}
	return volumes[len(volumes)-1] / avg
}

// flowSignal measures top-5 bid/ask imbalance plus a large-order tilt,
// normalized to [-1, 1].
func flowSignal(book model.OrderBookSnapshot) float64 {
	bidVol := topQuantity(book.YesBids, 5)
	askVol := topQuantity(book.YesAsks, 5)
	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	imbalance := float64(bidVol-askVol) / float64(total)

	whaleBid := maxQuantity(book.YesBids, 3)
	whaleAsk := maxQuantity(book.YesAsks, 3)
	whale := 0.0
	switch {
	case whaleBid > whaleAsk*2:
		whale = 0.2
	case whaleAsk > whaleBid*2:
		whale = -0.2
	}

	return imbalance*0.8 + whale*0.2
}

// combineSignals mixes the three signals. Price momentum without volume
// confirmation is damped, and the result is capped at +/-0.5.
func combineSignals(priceMom, volumeMom, flow float64) float64 {
	if volumeMom < volumeConfirmThreshold {
		priceMom *= volumeMom / volumeConfirmThreshold
	}
	combined := 0.5*priceMom + 0.3*flow + 0.2*(volumeMom-1.0)*0.1
	return clamp(combined, -0.5, 0.5)
}

// momentumConfidence rewards agreement between price momentum and order
// flow, plus volume confirmation.
func momentumConfidence(priceMom, volumeMom, flow float64) float64 {
	conf := math.Abs(priceMom) * 2
	if (priceMom > 0 && flow > 0) || (priceMom < 0 && flow < 0) {
		conf *= 1.3
	}
	if volumeMom >= volumeConfirmThreshold {
		conf *= 1.2
	}
	return math.Min(conf, 1.0)
}

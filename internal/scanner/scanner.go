package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/api"
	"github.com/Snapwave333/klashibot-sub001/internal/cache"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// listingKey is the single cache key for the active-market listing.
const listingKey = "active-markets"

// Config holds Market Scanner configuration.
type Config struct {
	ListingTTL            time.Duration // Listing cache window
	CacheCapacity         int
	DetailConcurrency     int           // Max concurrent detail fetches
	DetailTimeout         time.Duration // Per-fetch timeout
	MinLiquidityContracts int64         // Minimum open interest to analyze
	MaxSpreadCents        int           // Maximum YES bid-ask spread to analyze
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListingTTL:            20 * time.Second,
		CacheCapacity:         200,
		DetailConcurrency:     10,
		DetailTimeout:         5 * time.Second,
		MinLiquidityContracts: 100,
		MaxSpreadCents:        5,
	}
}

// Detail pairs a market snapshot with its orderbook, fetched together.
type Detail struct {
	Market model.MarketSnapshot
	Book   model.OrderBookSnapshot
}

// Scanner produces a bounded, de-duplicated, pre-filtered set of markets
// for strategy analysis.
type Scanner struct {
	cfg      Config
	client   *api.Client
	listings *cache.Cache[[]model.MarketSnapshot]
	logger   *slog.Logger
}

// New creates a Market Scanner.
func New(cfg Config, client *api.Client, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		cfg:    cfg,
		client: client,
		listings: cache.New[[]model.MarketSnapshot](cache.Config{
			TTL:      cfg.ListingTTL,
			Capacity: cfg.CacheCapacity,
		}),
		logger: logger,
	}
}

// Scan returns up to limit active markets that pass the liquidity and
// spread pre-filters, highest volume first. The listing is served from
// cache when fresh.
func (s *Scanner) Scan(ctx context.Context, limit int) ([]model.MarketSnapshot, error) {
	markets, ok := s.listings.Get(listingKey)
	if !ok {
		var err error
		markets, err = s.fetchListing(ctx)
		if err != nil {
			return nil, err
		}
		s.listings.Put(listingKey, markets)
	}

	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}

	// Callers must not mutate the cached backing array.
	out := make([]model.MarketSnapshot, len(markets))
	copy(out, markets)
	return out, nil
}

// fetchListing pulls the open-market listing, deduplicates by ticker,
// and applies the cheap pre-filters.
func (s *Scanner) fetchListing(ctx context.Context) ([]model.MarketSnapshot, error) {
	resp, err := s.client.GetMarkets(ctx, api.GetMarketsOptions{
		Limit:  1000,
		Status: "open",
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.Markets))
	markets := make([]model.MarketSnapshot, 0, len(resp.Markets))
	var filtered int

	for i := range resp.Markets {
		m := resp.Markets[i].ToSnapshot()
		if _, dup := seen[m.Ticker]; dup || m.Ticker == "" {
			continue
		}
		seen[m.Ticker] = struct{}{}

		if !s.tradeable(m) {
			filtered++
			continue
		}
		markets = append(markets, m)
	}

	sort.Slice(markets, func(i, j int) bool { return markets[i].Volume > markets[j].Volume })

	s.logger.Info("market listing refreshed",
		"fetched", len(resp.Markets),
		"tradeable", len(markets),
		"filtered", filtered,
	)

	return markets, nil
}

// tradeable applies the liquidity/spread pre-filter. This is the cheap
// rejection that runs before any strategy evaluation.
func (s *Scanner) tradeable(m model.MarketSnapshot) bool {
	switch m.Status {
	case "active", "open":
	default:
		return false
	}
	if m.YesBid < 1 || m.YesAsk > 99 || m.YesAsk <= m.YesBid {
		return false
	}
	if m.OpenInterest < s.cfg.MinLiquidityContracts {
		return false
	}
	if m.Spread() > s.cfg.MaxSpreadCents {
		return false
	}
	return true
}

// FetchDetails fetches quote + orderbook for each ticker with bounded
// concurrency. Tickers that fail to fetch within their own timeout are
// skipped for this cycle and logged; they are never retried synchronously.
func (s *Scanner) FetchDetails(ctx context.Context, tickers []string) []Detail {
	start := time.Now()

	sem := make(chan struct{}, s.cfg.DetailConcurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	results := make([]*Detail, len(tickers))

	for i, ticker := range tickers {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			d, err := s.fetchDetail(ctx, ticker)
			if err != nil {
				s.logger.Warn("failed to fetch market detail",
					"ticker", ticker,
					"err", err,
				)
				failed.Add(1)
				return
			}

			results[i] = d
			fetched.Add(1)
		}(i, ticker)
	}

	wg.Wait()

	details := make([]Detail, 0, len(tickers))
	for _, d := range results {
		if d != nil {
			details = append(details, *d)
		}
	}

	s.logger.Debug("detail fetch complete",
		"requested", len(tickers),
		"fetched", fetched.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)

	return details
}

// fetchDetail fetches one market's quote and book under a shared timeout.
func (s *Scanner) fetchDetail(ctx context.Context, ticker string) (*Detail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DetailTimeout)
	defer cancel()

	m, err := s.client.GetMarket(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if m.Ticker != ticker {
		return nil, fmt.Errorf("market detail ticker mismatch: asked %s, got %s", ticker, m.Ticker)
	}

	ob, err := s.client.GetOrderbook(ctx, ticker, 0) // 0 = all levels
	if err != nil {
		return nil, err
	}

	return &Detail{
		Market: m.ToSnapshot(),
		Book:   ob.ToSnapshot(ticker),
	}, nil
}

// CacheStats exposes listing-cache counters for the health endpoint.
func (s *Scanner) CacheStats() cache.Stats {
	return s.listings.Stats()
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL    = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultAPITimeout = 30 * time.Second
	DefaultMaxRetries = 3

	DefaultCycleInterval       = 10 * time.Second
	DefaultMaxMarkets          = 50
	DefaultAnalysisConcurrency = 5
	DefaultDetailConcurrency   = 10
	DefaultDetailTimeout       = 5 * time.Second
	DefaultListingTTL          = 20 * time.Second
	DefaultOpportunityTTL      = 30 * time.Second
	DefaultCacheCapacity       = 200
	DefaultMinLiquidity        = 100
	DefaultMaxSpreadCents      = 5
	DefaultPaperEquityCents    = 100_000 // $1,000

	DefaultKellyFraction        = 0.25
	DefaultMaxPositionPct       = 0.20
	DefaultMaxDailyLossPct      = 0.10
	DefaultMaxDrawdownPct       = 0.15
	DefaultWarningLossPct       = 0.05
	DefaultCriticalLossPct      = 0.08
	DefaultMinEdge              = 0.02
	DefaultCorrelationLimitPct  = 0.25
	DefaultMaxConsecutiveLosses = 5
	DefaultTickerCooldown       = 5 * time.Minute
	DefaultMaxTradesPerHour     = 10

	DefaultLookbackPeriods   = 10
	DefaultMomentumThreshold = 0.02
	DefaultMinConfidence     = 0.4
	DefaultMaxSpreadPct      = 0.05

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 5
	DefaultMinConns  = 1

	DefaultBatchSize     = 100
	DefaultFlushInterval = 2 * time.Second
	DefaultBufferSize    = 1000

	DefaultEventsPort = 8080
	DefaultEventsPath = "/events"
)

func (c *BotConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Trading loop defaults
	if c.Trading.CycleInterval == 0 {
		c.Trading.CycleInterval = DefaultCycleInterval
	}
	if c.Trading.MaxMarkets == 0 {
		c.Trading.MaxMarkets = DefaultMaxMarkets
	}
	if c.Trading.AnalysisConcurrency == 0 {
		c.Trading.AnalysisConcurrency = DefaultAnalysisConcurrency
	}
	if c.Trading.DetailConcurrency == 0 {
		c.Trading.DetailConcurrency = DefaultDetailConcurrency
	}
	if c.Trading.DetailTimeout == 0 {
		c.Trading.DetailTimeout = DefaultDetailTimeout
	}
	if c.Trading.ListingTTL == 0 {
		c.Trading.ListingTTL = DefaultListingTTL
	}
	if c.Trading.OpportunityTTL == 0 {
		c.Trading.OpportunityTTL = DefaultOpportunityTTL
	}
	if c.Trading.CacheCapacity == 0 {
		c.Trading.CacheCapacity = DefaultCacheCapacity
	}
	if c.Trading.MinLiquidityContracts == 0 {
		c.Trading.MinLiquidityContracts = DefaultMinLiquidity
	}
	if c.Trading.MaxSpreadCents == 0 {
		c.Trading.MaxSpreadCents = DefaultMaxSpreadCents
	}
	if c.Trading.PaperEquityCents == 0 {
		c.Trading.PaperEquityCents = DefaultPaperEquityCents
	}

	// Risk defaults
	if c.Risk.KellyFraction == 0 {
		c.Risk.KellyFraction = DefaultKellyFraction
	}
	if c.Risk.MaxPositionPct == 0 {
		c.Risk.MaxPositionPct = DefaultMaxPositionPct
	}
	if c.Risk.MaxDailyLossPct == 0 {
		c.Risk.MaxDailyLossPct = DefaultMaxDailyLossPct
	}
	if c.Risk.MaxDrawdownPct == 0 {
		c.Risk.MaxDrawdownPct = DefaultMaxDrawdownPct
	}
	if c.Risk.WarningLossPct == 0 {
		c.Risk.WarningLossPct = DefaultWarningLossPct
	}
	if c.Risk.CriticalLossPct == 0 {
		c.Risk.CriticalLossPct = DefaultCriticalLossPct
	}
	if c.Risk.MinEdge == 0 {
		c.Risk.MinEdge = DefaultMinEdge
	}
	if c.Risk.CorrelationLimitPct == 0 {
		c.Risk.CorrelationLimitPct = DefaultCorrelationLimitPct
	}
	if c.Risk.MaxConsecutiveLosses == 0 {
		c.Risk.MaxConsecutiveLosses = DefaultMaxConsecutiveLosses
	}
	if c.Risk.TickerCooldown == 0 {
		c.Risk.TickerCooldown = DefaultTickerCooldown
	}
	if c.Risk.MaxTradesPerHour == 0 {
		c.Risk.MaxTradesPerHour = DefaultMaxTradesPerHour
	}

	// Strategy defaults
	if len(c.Strategies.Enabled) == 0 {
		c.Strategies.Enabled = []string{"fundamental", "momentum"}
	}
	if c.Strategies.Fundamental.MinEdge == 0 {
		c.Strategies.Fundamental.MinEdge = DefaultMinEdge
	}
	if c.Strategies.Fundamental.MaxSpreadPct == 0 {
		c.Strategies.Fundamental.MaxSpreadPct = DefaultMaxSpreadPct
	}
	if c.Strategies.Momentum.LookbackPeriods == 0 {
		c.Strategies.Momentum.LookbackPeriods = DefaultLookbackPeriods
	}
	if c.Strategies.Momentum.MomentumThreshold == 0 {
		c.Strategies.Momentum.MomentumThreshold = DefaultMomentumThreshold
	}
	if c.Strategies.Momentum.MinConfidence == 0 {
		c.Strategies.Momentum.MinConfidence = DefaultMinConfidence
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Events defaults
	if c.Events.Port == 0 {
		c.Events.Port = DefaultEventsPort
	}
	if c.Events.Path == "" {
		c.Events.Path = DefaultEventsPath
	}
}

package config

import "time"

// BotConfig is the root configuration for a trading agent instance.
type BotConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Trading    TradingConfig    `yaml:"trading"`
	Risk       RiskConfig       `yaml:"risk"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Database   DatabaseConfig   `yaml:"database"`
	Journal    JournalConfig    `yaml:"journal"`
	Events     EventsConfig     `yaml:"events"`
}

// InstanceConfig identifies this agent.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	KeyID          string        `yaml:"key_id"`           // API key ID (KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// TradingConfig holds scan/analyze loop settings.
type TradingConfig struct {
	CycleInterval         time.Duration `yaml:"cycle_interval"`
	PaperMode             bool          `yaml:"paper_mode"`
	PaperEquityCents      int64         `yaml:"paper_equity_cents"` // Simulated starting equity
	MaxMarkets            int           `yaml:"max_markets"`            // Markets analyzed per cycle
	AnalysisConcurrency   int           `yaml:"analysis_concurrency"`   // Parallel per-market analyses
	DetailConcurrency     int           `yaml:"detail_concurrency"`     // Parallel detail fetches
	DetailTimeout         time.Duration `yaml:"detail_timeout"`         // Per-fetch timeout
	ListingTTL            time.Duration `yaml:"listing_ttl"`            // Market-listing cache window
	OpportunityTTL        time.Duration `yaml:"opportunity_ttl"`        // Per-ticker analysis cache window
	CacheCapacity         int           `yaml:"cache_capacity"`         // LRU capacity for both caches
	MinLiquidityContracts int64         `yaml:"min_liquidity_contracts"`
	MaxSpreadCents        int           `yaml:"max_spread_cents"`
}

// RiskConfig holds the risk manager limits. All *_pct values are
// fractions of equity (0.25 = 25%).
type RiskConfig struct {
	KellyFraction        float64       `yaml:"kelly_fraction"`
	MaxPositionPct       float64       `yaml:"max_position_pct"`
	MaxDailyLossPct      float64       `yaml:"max_daily_loss_pct"`
	MaxDrawdownPct       float64       `yaml:"max_drawdown_pct"`
	WarningLossPct       float64       `yaml:"warning_loss_pct"`
	CriticalLossPct      float64       `yaml:"critical_loss_pct"`
	MinEdge              float64       `yaml:"min_edge"`
	CorrelationLimitPct  float64       `yaml:"correlation_limit_pct"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	TickerCooldown       time.Duration `yaml:"ticker_cooldown"`
	MaxTradesPerHour     int           `yaml:"max_trades_per_hour"`
	Groups               []GroupConfig `yaml:"groups"`
}

// GroupConfig defines one correlation group. Tickers match by exact name
// or by prefix. MaxExposurePct of 0 falls back to CorrelationLimitPct.
type GroupConfig struct {
	Name           string   `yaml:"name"`
	Prefixes       []string `yaml:"prefixes"`
	Tickers        []string `yaml:"tickers"`
	MaxExposurePct float64  `yaml:"max_exposure_pct"`
}

// StrategiesConfig selects and tunes strategy evaluators.
type StrategiesConfig struct {
	Enabled     []string          `yaml:"enabled"`
	Fundamental FundamentalConfig `yaml:"fundamental"`
	Momentum    MomentumConfig    `yaml:"momentum"`
}

// FundamentalConfig tunes the fair-value strategy.
type FundamentalConfig struct {
	MinEdge      float64 `yaml:"min_edge"`
	MaxSpreadPct float64 `yaml:"max_spread_pct"`
}

// MomentumConfig tunes the momentum strategy.
type MomentumConfig struct {
	LookbackPeriods   int     `yaml:"lookback_periods"`
	MomentumThreshold float64 `yaml:"momentum_threshold"`
	MinConfidence     float64 `yaml:"min_confidence"`
}

// DatabaseConfig holds the optional Postgres connection for the trade
// journal. Disabled when host is empty.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a journal database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// JournalConfig holds batch writer settings.
type JournalConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// EventsConfig holds the dashboard event/health server settings.
type EventsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

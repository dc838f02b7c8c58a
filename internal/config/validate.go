package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// An invalid configuration is fatal at startup.
func (c *BotConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !c.Trading.PaperMode {
		if c.API.KeyID == "" {
			return errors.New("api.key_id is required for live trading")
		}
		if c.API.PrivateKeyPath == "" {
			return errors.New("api.private_key_path is required for live trading")
		}
	}

	if c.Trading.CycleInterval <= 0 {
		return errors.New("trading.cycle_interval must be positive")
	}
	if c.Trading.MaxMarkets < 1 {
		return errors.New("trading.max_markets must be >= 1")
	}
	if c.Trading.AnalysisConcurrency < 1 {
		return errors.New("trading.analysis_concurrency must be >= 1")
	}
	if c.Trading.DetailConcurrency < 1 {
		return errors.New("trading.detail_concurrency must be >= 1")
	}
	if c.Trading.CacheCapacity < 1 {
		return errors.New("trading.cache_capacity must be >= 1")
	}

	if err := validateFraction("risk.kelly_fraction", c.Risk.KellyFraction); err != nil {
		return err
	}
	if err := validateFraction("risk.max_position_pct", c.Risk.MaxPositionPct); err != nil {
		return err
	}
	if err := validateFraction("risk.max_daily_loss_pct", c.Risk.MaxDailyLossPct); err != nil {
		return err
	}
	if err := validateFraction("risk.max_drawdown_pct", c.Risk.MaxDrawdownPct); err != nil {
		return err
	}
	if err := validateFraction("risk.correlation_limit_pct", c.Risk.CorrelationLimitPct); err != nil {
		return err
	}
	if c.Risk.MinEdge <= 0 || c.Risk.MinEdge >= 1 {
		return errors.New("risk.min_edge must be in (0, 1)")
	}
	if c.Risk.WarningLossPct >= c.Risk.CriticalLossPct {
		return errors.New("risk.warning_loss_pct must be below risk.critical_loss_pct")
	}
	if c.Risk.CriticalLossPct >= c.Risk.MaxDailyLossPct {
		return errors.New("risk.critical_loss_pct must be below risk.max_daily_loss_pct")
	}

	for i, g := range c.Risk.Groups {
		if g.Name == "" {
			return fmt.Errorf("risk.groups[%d].name is required", i)
		}
		if len(g.Prefixes) == 0 && len(g.Tickers) == 0 {
			return fmt.Errorf("risk.groups[%d] (%s) needs prefixes or tickers", i, g.Name)
		}
		if g.MaxExposurePct < 0 || g.MaxExposurePct > 1 {
			return fmt.Errorf("risk.groups[%d] (%s) max_exposure_pct must be in [0, 1]", i, g.Name)
		}
	}

	for _, name := range c.Strategies.Enabled {
		switch name {
		case "fundamental", "momentum":
		default:
			return fmt.Errorf("unknown strategy %q in strategies.enabled", name)
		}
	}

	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}
	if c.Journal.BufferSize < 1 {
		return errors.New("journal.buffer_size must be >= 1")
	}

	if c.Events.Port < 1 || c.Events.Port > 65535 {
		return errors.New("events.port must be in [1, 65535]")
	}

	return nil
}

func validateFraction(field string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be in (0, 1]", field)
	}
	return nil
}

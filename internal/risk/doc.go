// Package risk gates every trade candidate against safety limits and
// computes a final, capped order size.
//
// The circuit breaker is re-evaluated once per cycle from portfolio
// thresholds; Halted latches until a manual reset. Candidate checks run
// in a fixed order so every rejection carries a deterministic reason.
// Sizing is fractional Kelly, scaled down by the breaker state and
// capped by the per-position limit.
package risk

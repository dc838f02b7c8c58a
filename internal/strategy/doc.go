// Package strategy turns validated market and orderbook snapshots into
// trade candidates.
//
// Each Strategy estimates a probability, a confidence, and a rationale
// for one market, or declines. Strategies only read market data; they
// never touch portfolio state. The Manager runs every enabled strategy
// and isolates failures so one broken evaluator cannot take down a
// cycle.
package strategy

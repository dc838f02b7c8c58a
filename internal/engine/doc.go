// Package engine drives the fixed-interval trading loop.
//
// Each cycle refreshes the portfolio, re-evaluates the circuit
// breaker, scans markets, analyzes candidates in parallel under a soft
// deadline, risk-filters every candidate, and submits at most one
// order. The engine is the single writer of portfolio state; risk
// checks within a cycle all observe the same snapshot, and the one
// executed fill is applied at cycle end.
package engine

// Package scanner implements the Market Scanner component.
//
// The Market Scanner:
//   - Fetches active market listings, served cache-first within a short TTL
//   - Discards illiquid or wide-spread markets before strategy evaluation
//   - Fetches per-market quote + orderbook details with bounded concurrency
//   - Skips (and logs) tickers that fail to fetch, without aborting a cycle
package scanner

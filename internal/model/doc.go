// Package model defines the core data types shared across the trading
// pipeline: market and orderbook snapshots, opportunities, portfolio
// state, fills, and the per-cycle result record.
//
// All prices are integer cents (1-99). All timestamps are microseconds
// since epoch unless the field says otherwise. Types here carry no
// behavior beyond small derived-value helpers.
package model

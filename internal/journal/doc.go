// Package journal persists cycle results and fills to Postgres.
//
// Writes are batched and asynchronous: the trading loop hands records
// to buffered channels and never waits on the database. A nil Journal
// is valid and drops everything, so persistence is strictly optional.
package journal

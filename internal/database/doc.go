// Package database manages the Postgres connection pool backing the
// trade journal. The database is optional; the bot trades normally
// without one.
package database

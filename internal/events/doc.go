// Package events fans cycle results out to dashboard subscribers.
//
// The hub never blocks the trading loop: a subscriber that cannot keep
// up loses events rather than slowing the publisher. The WebSocket
// handler is strictly read-only downstream; nothing a client sends
// reaches the trading path.
package events

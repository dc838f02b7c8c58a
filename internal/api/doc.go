// Package api provides the Kalshi REST client used by the trading agent.
//
// Endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Public market-data endpoints work unauthenticated; portfolio and order
// endpoints require an RSA-PSS request signer (internal/auth).
package api

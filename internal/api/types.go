package api

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket represents a market from the Kalshi API.
type APIMarket struct {
	Ticker     string `json:"ticker"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	Status     string `json:"status"`
	MarketType string `json:"market_type"`

	// Prices in cents
	YesBid    int `json:"yes_bid"`
	YesAsk    int `json:"yes_ask"`
	NoBid     int `json:"no_bid"`
	NoAsk     int `json:"no_ask"`
	LastPrice int `json:"last_price"`

	// Volume
	Volume       int64 `json:"volume"`
	Volume24h    int64 `json:"volume_24h"`
	OpenInterest int64 `json:"open_interest"`

	// Timestamps (ISO 8601)
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// OrderbookResponse from GET /markets/{ticker}/orderbook
type OrderbookResponse struct {
	Orderbook APIOrderbook `json:"orderbook"`
}

// APIOrderbook represents the orderbook from the Kalshi API.
// Each side lists resting bids as [price_cents, quantity] pairs.
type APIOrderbook struct {
	Yes [][]int `json:"yes"`
	No  [][]int `json:"no"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit  int
	Cursor string
	Status string
}

// BalanceResponse from GET /portfolio/balance. Values in cents.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
	Payout  int64 `json:"payout"`
}

// PositionsResponse from GET /portfolio/positions
type PositionsResponse struct {
	MarketPositions []APIPosition `json:"market_positions"`
	Cursor          string        `json:"cursor"`
}

// APIPosition represents one market position.
type APIPosition struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"` // Positive = YES contracts, negative = NO
	MarketExposure int64  `json:"market_exposure"`
	TotalTraded    int64  `json:"total_traded"`
	RealizedPnl    int64  `json:"realized_pnl"`
}

// CreateOrderRequest for POST /portfolio/orders
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "limit" or "market"
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
}

// CreateOrderResponse from POST /portfolio/orders
type CreateOrderResponse struct {
	Order APIOrder `json:"order"`
}

// APIOrder represents an order acknowledged by the exchange.
type APIOrder struct {
	OrderID   string `json:"order_id"`
	Ticker    string `json:"ticker"`
	Status    string `json:"status"`
	Side      string `json:"side"`
	YesPrice  int    `json:"yes_price"`
	NoPrice   int    `json:"no_price"`
	Count     int    `json:"count"`
	CreatedTS string `json:"created_time"`
}

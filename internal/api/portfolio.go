package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// GetBalance fetches the account balance. Requires a signer.
func (c *Client) GetBalance(ctx context.Context) (model.PortfolioBalance, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return model.PortfolioBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return resp.ToBalance(), nil
}

// GetPositions fetches open market positions. Requires a signer.
func (c *Client) GetPositions(ctx context.Context) ([]APIPosition, error) {
	var resp PositionsResponse
	if err := c.get(ctx, "/portfolio/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return resp.MarketPositions, nil
}

// CreateOrder submits a limit buy order for the given side. Requires a
// signer. The generated client order ID makes accidental resubmission
// idempotent on the exchange side.
func (c *Client) CreateOrder(ctx context.Context, ticker string, side model.Side, price, count int) (*APIOrder, error) {
	req := CreateOrderRequest{
		Ticker:        ticker,
		ClientOrderID: uuid.NewString(),
		Action:        "buy",
		Side:          string(side),
		Type:          "limit",
		Count:         count,
	}
	switch side {
	case model.SideYes:
		req.YesPrice = price
	case model.SideNo:
		req.NoPrice = price
	}

	var resp CreateOrderResponse
	if err := c.post(ctx, "/portfolio/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("create order %s: %w", ticker, err)
	}

	return &resp.Order, nil
}

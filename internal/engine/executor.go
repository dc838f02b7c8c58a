package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Snapwave333/klashibot-sub001/internal/api"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

// LiveExecutor submits real limit orders through the exchange API.
type LiveExecutor struct {
	client *api.Client
}

// NewLiveExecutor wraps an API client for order submission.
func NewLiveExecutor(client *api.Client) *LiveExecutor {
	return &LiveExecutor{client: client}
}

// Submit places a limit buy at the opportunity's entry price. The
// returned fill assumes the resting price is taken; position
// reconciliation happens on the next balance refresh.
func (e *LiveExecutor) Submit(ctx context.Context, opp model.Opportunity, contracts int) (model.FillResult, error) {
	order, err := e.client.CreateOrder(ctx, opp.Ticker, opp.Side, opp.EntryPrice, contracts)
	if err != nil {
		return model.FillResult{}, fmt.Errorf("create order: %w", err)
	}

	return model.FillResult{
		OrderID:  order.OrderID,
		Ticker:   opp.Ticker,
		Side:     opp.Side,
		Price:    opp.EntryPrice,
		Count:    contracts,
		FilledAt: time.Now().UnixMicro(),
	}, nil
}

// PaperExecutor simulates immediate fills at the entry price without
// touching the exchange.
type PaperExecutor struct {
	seq atomic.Int64
}

// NewPaperExecutor creates a paper-trading executor.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

// Submit fabricates a fill with a locally unique order ID.
func (e *PaperExecutor) Submit(_ context.Context, opp model.Opportunity, contracts int) (model.FillResult, error) {
	return model.FillResult{
		OrderID:  fmt.Sprintf("paper-%d", e.seq.Add(1)),
		Ticker:   opp.Ticker,
		Side:     opp.Side,
		Price:    opp.EntryPrice,
		Count:    contracts,
		FilledAt: time.Now().UnixMicro(),
	}, nil
}

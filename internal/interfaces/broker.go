package interfaces

import (
	"context"

	"kis-trading-bot/internal/types"
)

// Broker is the order gateway the polling loop drives.
type Broker interface {
	Mode() types.Mode
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderReceipt, error)
	AmendOrder(ctx context.Context, req types.AmendRequest) (*types.OrderReceipt, error)
	CancelOrder(ctx context.Context, req types.CancelRequest) (*types.OrderReceipt, error)
	AmendableOrders(ctx context.Context, cursor types.Cursor) (*types.AmendablePage, error)
	Balance(ctx context.Context, cursor types.Cursor) (*types.BalancePage, error)
	Buyability(ctx context.Context, stockCode string, price int64) (*types.BuyabilityResult, error)
	// Orders returns the receipts accepted during this process's lifetime.
	Orders() []types.OrderReceipt
}

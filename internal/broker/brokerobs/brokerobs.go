package brokerobs

import (
	"context"

	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/trace"
	"kis-trading-bot/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) Mode() types.Mode { return ob.broker.Mode() }

func (ob *observableBroker) Orders() []types.OrderReceipt { return ob.broker.Orders() }

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("stock_code", req.StockCode),
		attribute.String("side", string(req.Side)),
		attribute.Int64("qty", req.Quantity),
	)

	logger.InfoSkip(ctx, 1, "Placing order",
		"stock_code", req.StockCode,
		"side", req.Side,
		"qty", req.Quantity,
		"division", req.Division,
		"price", req.Price,
	)

	receipt, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"stock_code", req.StockCode,
			"side", req.Side,
			"qty", req.Quantity,
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"stock_code", req.StockCode,
		"order_number", receipt.OrderNumber,
		"org_number", receipt.OrgNumber,
	)
	return receipt, nil
}

func (ob *observableBroker) AmendOrder(ctx context.Context, req types.AmendRequest) (*types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AmendOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Amending order", "order_number", req.OrderNumber, "qty", req.Quantity, "price", req.Price, "all", req.AllQuantity)

	receipt, err := ob.broker.AmendOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to amend order", err, "order_number", req.OrderNumber)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Order amended", "order_number", req.OrderNumber, "new_order_number", receipt.OrderNumber)
	return receipt, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, req types.CancelRequest) (*types.OrderReceipt, error) {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Cancelling order", "order_number", req.OrderNumber, "qty", req.Quantity, "all", req.AllQuantity)

	receipt, err := ob.broker.CancelOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_number", req.OrderNumber)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Order cancelled", "order_number", req.OrderNumber, "cancel_number", receipt.OrderNumber)
	return receipt, nil
}

func (ob *observableBroker) AmendableOrders(ctx context.Context, cursor types.Cursor) (*types.AmendablePage, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AmendableOrders")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching amendable orders", "follow_up", !cursor.IsZero())

	page, err := ob.broker.AmendableOrders(ctx, cursor)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch amendable orders", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Amendable orders fetched", "count", len(page.Orders), "has_more", page.HasMore)
	return page, nil
}

func (ob *observableBroker) Balance(ctx context.Context, cursor types.Cursor) (*types.BalancePage, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Balance")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching balance", "follow_up", !cursor.IsZero())

	page, err := ob.broker.Balance(ctx, cursor)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balance", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Balance fetched", "holdings", len(page.Entries), "has_more", page.HasMore)
	return page, nil
}

func (ob *observableBroker) Buyability(ctx context.Context, stockCode string, price int64) (*types.BuyabilityResult, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Buyability")
	defer span.End()
	span.SetAttributes(attribute.String("stock_code", stockCode))

	logger.DebugSkip(ctx, 1, "Checking buyability", "stock_code", stockCode, "price", price)

	res, err := ob.broker.Buyability(ctx, stockCode, price)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to check buyability", err, "stock_code", stockCode)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Buyability fetched", "stock_code", stockCode, "max_qty", res.MaxQuantity, "max_amount", res.MaxAmount.String())
	return res, nil
}

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/store"
	"kis-trading-bot/internal/types"
)

// gate decides whether an action fires at now. Gates are stateful and only
// consulted from the loop goroutine.
type gate interface {
	due(now time.Time) bool
}

type always struct{}

func (always) due(time.Time) bool { return true }

// once fires on its first consultation whatever the outcome of the action.
type once struct{ fired bool }

func (o *once) due(time.Time) bool {
	if o.fired {
		return false
	}
	o.fired = true
	return true
}

// everyMinutes fires once inside each minute whose number is divisible by n
// and re-arms as soon as a non-matching minute is seen.
type everyMinutes struct {
	n     int
	armed bool
}

func newEveryMinutes(n int) *everyMinutes { return &everyMinutes{n: n, armed: true} }

func (p *everyMinutes) due(now time.Time) bool {
	if now.Minute()%p.n != 0 {
		p.armed = true
		return false
	}
	if !p.armed {
		return false
	}
	p.armed = false
	return true
}

// Action is one named unit of work the loop runs while the market is open.
type Action struct {
	Name string
	gate gate
	run  func(ctx context.Context) (any, error)
}

func NewAction(name string, run func(ctx context.Context) (any, error)) Action {
	return Action{Name: name, gate: always{}, run: run}
}

// Once limits the action to the first open tick.
func (a Action) Once() Action {
	a.gate = &once{}
	return a
}

// Every limits the action to minutes divisible by n.
func (a Action) Every(n int) Action {
	if n > 0 {
		a.gate = newEveryMinutes(n)
	}
	return a
}

// BuildActions turns the configured action list into runnable actions
// bound to brk.
func BuildActions(cfgs []store.ActionConfig, brk interfaces.Broker) ([]Action, error) {
	out := make([]Action, 0, len(cfgs))
	for i, c := range cfgs {
		a, err := buildAction(c, brk)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		switch {
		case c.Once:
			a = a.Once()
		case c.EveryMinutes > 0:
			a = a.Every(c.EveryMinutes)
		}
		out = append(out, a)
	}
	return out, nil
}

func buildAction(c store.ActionConfig, brk interfaces.Broker) (Action, error) {
	switch c.Type {
	case store.ActionBuyability:
		symbol, price := c.Symbol, c.Price
		return NewAction("buyability:"+symbol, func(ctx context.Context) (any, error) {
			return brk.Buyability(ctx, symbol, price)
		}), nil

	case store.ActionOrder:
		div, ok := types.ParsePriceDivision(c.Division)
		if !ok {
			return Action{}, fmt.Errorf("unknown division %q", c.Division)
		}
		req := types.OrderRequest{
			StockCode: c.Symbol,
			Quantity:  c.Quantity,
			Division:  div,
			Price:     c.Price,
			Side:      types.Side(strings.ToUpper(c.Side)),
		}
		name := fmt.Sprintf("order:%s:%s", strings.ToLower(string(req.Side)), req.StockCode)
		return NewAction(name, func(ctx context.Context) (any, error) {
			return brk.PlaceOrder(ctx, req)
		}), nil

	case store.ActionBalance:
		return NewAction("balance", func(ctx context.Context) (any, error) {
			return brk.Balance(ctx, types.Cursor{})
		}), nil

	case store.ActionAmendable:
		return NewAction("amendable", func(ctx context.Context) (any, error) {
			return brk.AmendableOrders(ctx, types.Cursor{})
		}), nil
	}
	return Action{}, fmt.Errorf("unknown action type %q", c.Type)
}

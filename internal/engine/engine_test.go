package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kis-trading-bot/internal/market"
	"kis-trading-bot/internal/store"
	"kis-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu    sync.Mutex
	calls []string
	errs  map[string][]error
}

func (f *fakeBroker) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if q := f.errs[name]; len(q) > 0 {
		f.errs[name] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeBroker) Mode() types.Mode { return types.ModeLive }

func (f *fakeBroker) PlaceOrder(_ context.Context, req types.OrderRequest) (*types.OrderReceipt, error) {
	if err := f.record("order"); err != nil {
		return nil, err
	}
	return &types.OrderReceipt{Accepted: true, Intent: req.Side.Intent(), OrderNumber: "1"}, nil
}

func (f *fakeBroker) AmendOrder(context.Context, types.AmendRequest) (*types.OrderReceipt, error) {
	return nil, f.record("amend")
}

func (f *fakeBroker) CancelOrder(context.Context, types.CancelRequest) (*types.OrderReceipt, error) {
	return nil, f.record("cancel")
}

func (f *fakeBroker) AmendableOrders(context.Context, types.Cursor) (*types.AmendablePage, error) {
	if err := f.record("amendable"); err != nil {
		return nil, err
	}
	return &types.AmendablePage{}, nil
}

func (f *fakeBroker) Balance(context.Context, types.Cursor) (*types.BalancePage, error) {
	if err := f.record("balance"); err != nil {
		return nil, err
	}
	return &types.BalancePage{}, nil
}

func (f *fakeBroker) Buyability(_ context.Context, code string, _ int64) (*types.BuyabilityResult, error) {
	if err := f.record("buyability"); err != nil {
		return nil, err
	}
	return &types.BuyabilityResult{StockCode: code, MaxQuantity: 3}, nil
}

func (f *fakeBroker) Orders() []types.OrderReceipt { return nil }

func (f *fakeBroker) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func kst(h, m, s int) time.Time {
	return time.Date(2026, 10, 16, h, m, s, 0, market.KST)
}

func newTestEngine(t *testing.T, brk *fakeBroker, clock *stepClock, actions ...store.ActionConfig) *Engine {
	t.Helper()
	cfg := &store.Config{Actions: actions}
	eng, err := New(cfg, brk, market.Default(), WithNow(clock.now))
	require.NoError(t, err)
	return eng.(*Engine)
}

func TestStepIdleWhenMarketClosed(t *testing.T) {
	brk := &fakeBroker{}
	clock := &stepClock{t: kst(8, 29, 59)}
	eng := newTestEngine(t, brk, clock, store.ActionConfig{Type: store.ActionBalance})

	res, err := eng.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, res.State)
	assert.Empty(t, res.Actions)
	assert.NotEmpty(t, res.ID)
	assert.Empty(t, brk.called())
}

func TestStepRunsActionsInOrder(t *testing.T) {
	brk := &fakeBroker{}
	clock := &stepClock{t: kst(8, 30, 0)}
	eng := newTestEngine(t, brk, clock,
		store.ActionConfig{Type: store.ActionBuyability, Symbol: "005930", Price: 70000},
		store.ActionConfig{Type: store.ActionBalance},
	)

	res, err := eng.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateActing, res.State)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, "buyability:005930", res.Actions[0].Name)
	assert.Empty(t, res.Actions[0].Error)
	assert.Equal(t, []string{"buyability", "balance"}, brk.called())
}

func TestOnceActionIsAttemptedOnceEvenOnFailure(t *testing.T) {
	brk := &fakeBroker{errs: map[string][]error{"order": {errors.New("rejected")}}}
	clock := &stepClock{t: kst(9, 0, 0)}
	eng := newTestEngine(t, brk, clock, store.ActionConfig{
		Type: store.ActionOrder, Symbol: "005930", Quantity: 1, Side: "BUY", Division: "01", Once: true,
	})

	first, err := eng.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, "rejected", first.Actions[0].Error)

	second, err := eng.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateActing, second.State)
	assert.Empty(t, second.Actions)
	assert.Equal(t, []string{"order"}, brk.called())
}

func TestEveryMinutesGate(t *testing.T) {
	brk := &fakeBroker{}
	clock := &stepClock{}
	eng := newTestEngine(t, brk, clock, store.ActionConfig{Type: store.ActionBalance, EveryMinutes: 10})

	ticks := []struct {
		at   time.Time
		runs bool
	}{
		{kst(10, 10, 0), true},
		{kst(10, 10, 30), false},
		{kst(10, 11, 0), false},
		{kst(10, 15, 0), false},
		{kst(10, 20, 0), true},
		{kst(10, 20, 1), false},
	}
	for _, tick := range ticks {
		clock.t = tick.at
		res, err := eng.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tick.runs, len(res.Actions) == 1, tick.at.Format("15:04:05"))
	}
	assert.Len(t, brk.called(), 2)
}

func TestActionPanicIsContained(t *testing.T) {
	clock := &stepClock{t: kst(10, 0, 0)}
	ran := false
	eng := newEngine(market.Default(), []Action{
		NewAction("boom", func(context.Context) (any, error) { panic("nil map") }),
		NewAction("after", func(context.Context) (any, error) { ran = true; return "ok", nil }),
	}, WithNow(clock.now))

	res, err := eng.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Actions, 2)
	assert.Contains(t, res.Actions[0].Error, "panic")
	assert.Equal(t, "ok", res.Actions[1].Output)
	assert.True(t, ran)
}

func TestStepRecoversAfterTransportFailure(t *testing.T) {
	brk := &fakeBroker{errs: map[string][]error{"balance": {errors.New("kis balance: transport failure: connection refused")}}}
	clock := &stepClock{t: kst(11, 0, 0)}
	eng := newTestEngine(t, brk, clock, store.ActionConfig{Type: store.ActionBalance})

	first, err := eng.Step(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.Actions[0].Error)

	second, err := eng.Step(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Actions[0].Error)
	assert.NotNil(t, second.Actions[0].Output)
}

func TestBuildActionsUnknownType(t *testing.T) {
	_, err := BuildActions([]store.ActionConfig{{Type: "dance"}}, &fakeBroker{})
	assert.Error(t, err)
}

// flakyEngine fails, panics, then succeeds.
type flakyEngine struct {
	mu    sync.Mutex
	calls int
}

func (f *flakyEngine) Step(context.Context) (*types.StepResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	switch n {
	case 1:
		return nil, errors.New("transport failure")
	case 2:
		panic("unexpected")
	default:
		return &types.StepResult{ID: "ok", State: types.StateIdle}, nil
	}
}

func TestRunSurvivesFailingSteps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eng := &flakyEngine{}
	var got []*types.StepResult
	err := Run(ctx, eng, time.Millisecond, func(res *types.StepResult) {
		got = append(got, res)
		if len(got) == 2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].ID)
	eng.mu.Lock()
	assert.Equal(t, 4, eng.calls)
	eng.mu.Unlock()
}

func TestRunRejectsZeroInterval(t *testing.T) {
	assert.Error(t, Run(context.Background(), &flakyEngine{}, 0, nil))
}

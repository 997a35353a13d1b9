package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/types"

	"github.com/google/uuid"
)

// Engine is the market-gated action runner. It holds no trading state of
// its own beyond each action's gate.
type Engine struct {
	clock   interfaces.MarketClock
	actions []Action
	now     func() time.Time
}

var _ interfaces.Engine = (*Engine)(nil)

type Option func(*Engine)

// WithNow replaces time.Now, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func newEngine(clock interfaces.MarketClock, actions []Action, opts ...Option) *Engine {
	e := &Engine{clock: clock, actions: actions, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step runs one tick. A closed market yields StateIdle and runs nothing;
// action failures are recorded in the result, never returned.
func (e *Engine) Step(ctx context.Context) (*types.StepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	res := &types.StepResult{ID: uuid.NewString(), Time: now, State: types.StateIdle}
	if !e.clock.IsOpen(now) {
		return res, nil
	}

	res.State = types.StateActing
	for i := range e.actions {
		a := &e.actions[i]
		if !a.gate.due(now) {
			continue
		}
		res.Actions = append(res.Actions, e.runAction(ctx, a))
	}
	return res, nil
}

func (e *Engine) runAction(ctx context.Context, a *Action) (ar types.ActionResult) {
	ar.Name = a.Name
	defer func() {
		if r := recover(); r != nil {
			ar.Output = nil
			ar.Error = fmt.Sprintf("panic: %v", r)
			logger.Error(ctx, "Action panicked", "action", a.Name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	out, err := a.run(ctx)
	if err != nil {
		ar.Error = err.Error()
		logger.Warn(ctx, "Action failed", "action", a.Name, "error", err)
		return ar
	}
	ar.Output = out
	logger.Debug(ctx, "Action completed", "action", a.Name)
	return ar
}

// Run ticks eng every interval until ctx is cancelled. A failed or
// panicking step is logged and the loop carries on. emit, when set,
// receives every successful step.
func Run(ctx context.Context, eng interfaces.Engine, interval time.Duration, emit func(*types.StepResult)) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info(ctx, "Polling loop started", "interval", interval.String())
	for {
		if err := ctx.Err(); err != nil {
			logger.Info(ctx, "Polling loop stopped", "reason", err)
			return err
		}
		if res := safeStep(ctx, eng); res != nil && emit != nil {
			emit(res)
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func safeStep(ctx context.Context, eng interfaces.Engine) (res *types.StepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			logger.Error(ctx, "Step panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	res, err := eng.Step(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.ErrorWithErr(ctx, "Step failed", err)
		}
		return nil
	}
	return res
}

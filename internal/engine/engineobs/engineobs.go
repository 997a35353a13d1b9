package engineobs

import (
	"context"
	"time"

	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/trace"
	"kis-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

// Step only logs at info level when the tick actually ran something;
// idle ticks arrive every poll interval.
func (oe *observableEngine) Step(ctx context.Context) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	result, err := oe.engine.Step(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Tick failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if len(result.Actions) == 0 {
		logger.DebugSkip(ctx, 1, "Tick completed", "id", result.ID, "state", result.State)
		return result, nil
	}

	failed := 0
	for _, a := range result.Actions {
		if a.Error != "" {
			failed++
		}
	}
	logger.InfoSkip(ctx, 1, "Tick completed",
		"id", result.ID,
		"state", result.State,
		"actions", len(result.Actions),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

package interfaces

import (
	"context"

	"kis-trading-bot/internal/types"
)

type Engine interface {
	Step(ctx context.Context) (*types.StepResult, error)
}

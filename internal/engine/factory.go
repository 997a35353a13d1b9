package engine

import (
	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/store"
)

func New(cfg *store.Config, brk interfaces.Broker, clock interfaces.MarketClock, opts ...Option) (interfaces.Engine, error) {
	actions, err := BuildActions(cfg.Actions, brk)
	if err != nil {
		return nil, err
	}
	return newEngine(clock, actions, opts...), nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kis-trading-bot/internal/engine"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/trace"
	"kis-trading-bot/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	must(initializeSystem())
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, *configPath)
	must(err)

	instruments := initializeInstruments(ctx, cfg)
	brk, err := initializeBroker(ctx, cfg, instruments)
	must(err)
	eng, err := initializeEngine(cfg, brk)
	must(err)

	logger.Info(ctx, "Bot started",
		"mode", brk.Mode(),
		"market_open", cfg.Market.Open,
		"market_close", cfg.Market.Close,
		"poll_interval", cfg.PollInterval().String(),
		"actions", len(cfg.Actions),
	)

	err = engine.Run(ctx, eng, cfg.PollInterval(), printStep)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Polling loop exited", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "Shutting down", "orders_accepted", len(brk.Orders()))
}

// printStep writes ticks that did something to stdout as one JSON line.
func printStep(st *types.StepResult) {
	if st == nil || len(st.Actions) == 0 {
		return
	}
	b, err := json.Marshal(st)
	if err != nil {
		return
	}
	fmt.Println(string(b))
}

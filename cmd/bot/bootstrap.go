package main

import (
	"context"
	"fmt"
	"os"

	"kis-trading-bot/internal/broker/brokerobs"
	"kis-trading-bot/internal/broker/kis"
	"kis-trading-bot/internal/engine"
	"kis-trading-bot/internal/engine/engineobs"
	"kis-trading-bot/internal/instrument"
	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/market"
	"kis-trading-bot/internal/store"
	"kis-trading-bot/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	} else if trace.Enabled() {
		logger.Info(context.Background(), "Tracing enabled", "output", "stderr")
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeInstruments loads the listing master when enabled. A failed
// download downgrades to no instrument validation rather than stopping the bot.
func initializeInstruments(ctx context.Context, cfg *store.Config) interfaces.InstrumentProvider {
	if !cfg.Instruments.Enabled {
		return nil
	}
	s, err := instrument.NewStore(instrument.Config{
		Dir:     cfg.Instruments.Dir,
		TTL:     cfg.InstrumentTTL(),
		Markets: cfg.Instruments.Markets,
		BaseURL: cfg.Instruments.BaseURL,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Invalid instrument settings", err)
		return nil
	}
	if err := s.Load(ctx); err != nil {
		logger.Warn(ctx, "Instrument master unavailable - stock codes will only be length-checked", "error", err)
		return nil
	}
	return s
}

// initializeBroker builds the KIS gateway wrapped with observability
func initializeBroker(ctx context.Context, cfg *store.Config, instruments interfaces.InstrumentProvider) (interfaces.Broker, error) {
	mode := cfg.ModeValue()
	creds, err := store.LoadCredentials(cfg.Credentials.File, mode)
	if err != nil {
		return nil, err
	}

	gw, err := kis.NewKIS(kis.Params{
		Mode:              mode,
		AppKey:            creds.AppKey,
		AppSecret:         creds.AppSecret,
		Account:           creds.Account,
		BaseURL:           cfg.HTTP.BaseURL,
		Timeout:           cfg.HTTPTimeout(),
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
		Logging:           cfg.HTTP.Logging,
		Instruments:       instruments,
	})
	if err != nil {
		return nil, err
	}

	if mode.IsLive() {
		logger.Warn(ctx, "Running against a LIVE account - orders are real")
	} else {
		logger.Info(ctx, "Running against the simulated account")
	}
	return brokerobs.Wrap(gw), nil
}

// initializeEngine builds the market-gated engine wrapped with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker) (interfaces.Engine, error) {
	clock, err := market.NewClock(cfg.Market.Open, cfg.Market.Close, market.KST)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg, brk, clock)
	if err != nil {
		return nil, err
	}
	return engineobs.Wrap(eng), nil
}

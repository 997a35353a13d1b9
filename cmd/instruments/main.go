package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kis-trading-bot/internal/instrument"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		refresh    = flag.Bool("refresh", false, "ignore cached masters and download again")
		code       = flag.String("code", "", "look up a 6-character stock code")
		search     = flag.String("search", "", "search instruments by name")
		limit      = flag.Int("limit", 20, "maximum search results")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	icfg := instrument.Config{Dir: "cache/instruments", TTL: 24 * time.Hour}
	if cfg, err := store.LoadConfig(*configPath); err == nil {
		icfg = instrument.Config{
			Dir:     cfg.Instruments.Dir,
			TTL:     cfg.InstrumentTTL(),
			Markets: cfg.Instruments.Markets,
			BaseURL: cfg.Instruments.BaseURL,
		}
	} else {
		logger.Warn(ctx, "Config not loaded - using instrument defaults", "error", err)
	}

	s, err := instrument.NewStore(icfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *refresh {
		err = s.Refresh(ctx)
	} else {
		err = s.Load(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	switch {
	case *code != "":
		inst, ok := s.Lookup(strings.TrimSpace(*code))
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown stock code %q\n", *code)
			os.Exit(2)
		}
		_ = enc.Encode(inst)
	case *search != "":
		_ = enc.Encode(s.Search(*search, *limit))
	default:
		fmt.Printf("Loaded %d instruments\n", s.Len())
	}
}

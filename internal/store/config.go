package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"kis-trading-bot/internal/types"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode           string `yaml:"mode"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	Market         struct {
		Open  string `yaml:"open"`
		Close string `yaml:"close"`
	} `yaml:"market"`
	HTTP struct {
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		BaseURL           string  `yaml:"base_url"`
		Logging           bool    `yaml:"logging"`
	} `yaml:"http"`
	Credentials struct {
		File string `yaml:"file"`
	} `yaml:"credentials"`
	Instruments struct {
		Enabled  bool     `yaml:"enabled"`
		Dir      string   `yaml:"dir"`
		TTLHours int      `yaml:"ttl_hours"`
		Markets  []string `yaml:"markets"`
		BaseURL  string   `yaml:"base_url"`
	} `yaml:"instruments"`
	Actions []ActionConfig `yaml:"actions"`
}

const (
	ActionBuyability = "buyability"
	ActionOrder      = "order"
	ActionBalance    = "balance"
	ActionAmendable  = "amendable"
)

// ActionConfig is one step the loop attempts on every open tick.
type ActionConfig struct {
	Type     string `yaml:"type"`
	Symbol   string `yaml:"symbol"`
	Price    int64  `yaml:"price"`
	Quantity int64  `yaml:"quantity"`
	Side     string `yaml:"side"`
	Division string `yaml:"division"`
	// Once fires the action on the first open tick only.
	Once bool `yaml:"once"`
	// EveryMinutes gates periodic queries to minutes divisible by N.
	EveryMinutes int `yaml:"every_minutes"`
}

var knownModes = map[string]bool{
	"LIVE": true, "REAL": true, "R": true,
	"SIMULATED": true, "PAPER": true, "VIRTUAL": true, "S": true, "V": true,
}

func (c *Config) ModeValue() types.Mode { return types.ParseMode(c.Mode) }

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c *Config) InstrumentTTL() time.Duration {
	return time.Duration(c.Instruments.TTLHours) * time.Hour
}

func (c *Config) Validate() error {
	if !knownModes[strings.ToUpper(strings.TrimSpace(c.Mode))] {
		return fmt.Errorf("invalid mode '%s': must be 'LIVE' or 'SIMULATED'", c.Mode)
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second cannot be negative, got %.2f", c.HTTP.RequestsPerSecond)
	}
	if len(c.Actions) == 0 {
		return errors.New("actions cannot be empty")
	}
	for i, a := range c.Actions {
		if err := a.validate(c.ModeValue()); err != nil {
			return fmt.Errorf("actions[%d] (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func (a ActionConfig) validate(mode types.Mode) error {
	if a.EveryMinutes < 0 || a.EveryMinutes > 60 {
		return fmt.Errorf("every_minutes must be between 0-60, got %d", a.EveryMinutes)
	}
	switch a.Type {
	case ActionBuyability:
		if utf8.RuneCountInString(a.Symbol) != 6 {
			return fmt.Errorf("symbol %q must be 6 characters", a.Symbol)
		}
	case ActionOrder:
		if utf8.RuneCountInString(a.Symbol) != 6 {
			return fmt.Errorf("symbol %q must be 6 characters", a.Symbol)
		}
		if a.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive, got %d", a.Quantity)
		}
		if s := strings.ToUpper(a.Side); s != string(types.SideBuy) && s != string(types.SideSell) {
			return fmt.Errorf("side must be 'BUY' or 'SELL', got '%s'", a.Side)
		}
		if _, ok := types.ParsePriceDivision(a.Division); !ok {
			return fmt.Errorf("unknown division '%s'", a.Division)
		}
	case ActionBalance:
	case ActionAmendable:
		if !mode.IsLive() {
			return errors.New("amendable orders can only be queried on a live account")
		}
	default:
		return fmt.Errorf("unknown action type '%s'", a.Type)
	}
	return nil
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = string(types.ModeSimulated)
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 500
	}
	if c.Market.Open == "" {
		c.Market.Open = "08:30"
	}
	if c.Market.Close == "" {
		c.Market.Close = "15:30"
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 10
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = 1
	}
	if c.Credentials.File == "" {
		c.Credentials.File = "configs"
	}
	if c.Instruments.Dir == "" {
		c.Instruments.Dir = "cache/instruments"
	}
	if c.Instruments.TTLHours == 0 {
		c.Instruments.TTLHours = 24
	}
	if len(c.Instruments.Markets) == 0 {
		c.Instruments.Markets = []string{"KOSPI", "KOSDAQ"}
	}
	for i := range c.Actions {
		a := &c.Actions[i]
		a.Type = strings.ToLower(strings.TrimSpace(a.Type))
		if a.Side == "" {
			a.Side = string(types.SideBuy)
		}
		a.Side = strings.ToUpper(a.Side)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

package instrument

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kis-trading-bot/internal/api"
	"kis-trading-bot/internal/interfaces"
	"kis-trading-bot/internal/logger"
	"kis-trading-bot/internal/types"
)

const DefaultBaseURL = "https://new.real.download.dws.co.kr/common/master"

type Config struct {
	Dir     string
	TTL     time.Duration
	Markets []string
	BaseURL string
	Timeout time.Duration
}

// Store is an in-memory code index over the KIS listing masters.
type Store struct {
	markets []Market
	cache   *Cache
	client  *api.Client

	mu     sync.RWMutex
	byCode map[string]types.Instrument
}

var _ interfaces.InstrumentProvider = (*Store)(nil)

func NewStore(cfg Config) (*Store, error) {
	names := cfg.Markets
	if len(names) == 0 {
		names = []string{KOSPI.Name, KOSDAQ.Name}
	}
	markets := make([]Market, 0, len(names))
	for _, n := range names {
		m, ok := LookupMarket(n)
		if !ok {
			return nil, fmt.Errorf("unknown market %q", n)
		}
		markets = append(markets, m)
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Store{
		markets: markets,
		cache:   NewCache(cfg.Dir, cfg.TTL),
		client:  api.NewClient(api.WithBaseURL(base), api.WithTimeout(timeout), api.WithHeader("Accept", "*/*")),
		byCode:  map[string]types.Instrument{},
	}, nil
}

// Load fills the index from cache, downloading stale or missing masters.
func (s *Store) Load(ctx context.Context) error {
	index := map[string]types.Instrument{}
	for _, m := range s.markets {
		data, cached, err := s.cache.GetOrFetch(m.File, func() ([]byte, error) {
			return s.download(ctx, m)
		})
		if err != nil {
			return err
		}
		rows, err := ParseArchive(data, m)
		if err != nil {
			return err
		}
		for _, r := range rows {
			index[r.Code] = r
		}
		logger.Info(ctx, "Instrument master loaded", "market", m.Name, "count", len(rows), "cached", cached)
	}

	s.mu.Lock()
	s.byCode = index
	s.mu.Unlock()
	return nil
}

// Refresh drops cached archives and loads them again.
func (s *Store) Refresh(ctx context.Context) error {
	for _, m := range s.markets {
		if err := s.cache.Delete(m.File); err != nil {
			return fmt.Errorf("drop cached %s: %w", m.File, err)
		}
	}
	return s.Load(ctx)
}

func (s *Store) download(ctx context.Context, m Market) ([]byte, error) {
	resp, err := s.client.GET(ctx, "/"+m.File, nil, nil)
	if err != nil {
		logger.ErrorWithErr(ctx, "Instrument master download failed", err, "market", m.Name)
		return nil, fmt.Errorf("download %s: %w", m.File, err)
	}
	return resp.Body, nil
}

func (s *Store) Lookup(code string) (types.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byCode[code]
	return i, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode)
}

// Search returns instruments whose name contains q, ordered by code.
func (s *Store) Search(q string, limit int) []types.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Instrument
	for _, i := range s.byCode {
		if containsFold(i.Name, q) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

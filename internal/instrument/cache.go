package instrument

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache keeps downloaded master archives on disk and treats them as stale
// once their modification time is older than ttl.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
}

func NewCache(dir string, ttl time.Duration) *Cache {
	if dir == "" {
		dir = "cache/instruments"
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *Cache) path(file string) string {
	return filepath.Join(c.dir, file)
}

// Get returns the cached bytes for file when they are still fresh.
func (c *Cache) Get(file string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path(file))
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(c.path(file))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set writes data atomically so a crash never leaves a half-written archive.
func (c *Cache) Set(file string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, file+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(file))
}

func (c *Cache) Delete(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path(file))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetOrFetch serves from disk or calls fetch and stores its result. A
// failed write is not fatal; the fetched bytes are still returned.
func (c *Cache) GetOrFetch(file string, fetch func() ([]byte, error)) (data []byte, cached bool, err error) {
	if data, ok := c.Get(file); ok {
		return data, true, nil
	}
	data, err = fetch()
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(file, data)
	return data, false, nil
}

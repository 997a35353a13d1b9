package instrument

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masterServer(t *testing.T, archives map[string][]byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		data, ok := archives[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestStoreLoadAndLookup(t *testing.T) {
	srv, hits := masterServer(t, map[string][]byte{
		KOSPI.File:  masterArchive(t, KOSPI, row{"005930", "KR7005930003", "삼성전자"}),
		KOSDAQ.File: masterArchive(t, KOSDAQ, row{"035720", "KR7035720002", "카카오"}),
	})
	dir := t.TempDir()

	s, err := NewStore(Config{Dir: dir, TTL: time.Hour, BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, 2, s.Len())
	inst, ok := s.Lookup("035720")
	require.True(t, ok)
	assert.Equal(t, "KOSDAQ", inst.Market)
	_, ok = s.Lookup("999999")
	assert.False(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	// Second store over the same dir is served from disk.
	again, err := NewStore(Config{Dir: dir, TTL: time.Hour, BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, again.Load(context.Background()))
	assert.Equal(t, 2, again.Len())
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	found := again.Search("삼성", 10)
	require.Len(t, found, 1)
	assert.Equal(t, "005930", found[0].Code)
}

func TestStoreRefreshRedownloads(t *testing.T) {
	srv, hits := masterServer(t, map[string][]byte{
		KOSPI.File: masterArchive(t, KOSPI, row{"005930", "KR7005930003", "삼성전자"}),
	})
	s, err := NewStore(Config{Dir: t.TempDir(), TTL: time.Hour, BaseURL: srv.URL, Markets: []string{"KOSPI"}})
	require.NoError(t, err)

	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestStoreDownloadFailure(t *testing.T) {
	srv, _ := masterServer(t, map[string][]byte{})
	s, err := NewStore(Config{Dir: t.TempDir(), BaseURL: srv.URL, Markets: []string{"KOSPI"}})
	require.NoError(t, err)
	assert.Error(t, s.Load(context.Background()))
	assert.Zero(t, s.Len())
}

func TestNewStoreUnknownMarket(t *testing.T) {
	_, err := NewStore(Config{Markets: []string{"NYSE"}})
	assert.Error(t, err)
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, time.Hour)
	require.NoError(t, c.Set("a.zip", []byte("data")))

	got, ok := c.Get("a.zip")
	require.True(t, ok)
	assert.Equal(t, []byte("data"), got)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a.zip"), old, old))
	_, ok = c.Get("a.zip")
	assert.False(t, ok)

	require.NoError(t, c.Delete("a.zip"))
	require.NoError(t, c.Delete("a.zip"))
}

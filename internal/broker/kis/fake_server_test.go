package kis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kis-trading-bot/internal/types"
)

// fakeKIS is a minimal in-process KIS server. Handlers for trading paths are
// set per test; token and hashkey are always served.
type fakeKIS struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	hashCalls   int
	tradeCalls  int
	tokenStatus int
	tokenExpiry string
	hashedBody  [][]byte
	lastHeaders http.Header
	lastBody    []byte
	lastQuery   map[string]string

	routes map[string]func(w http.ResponseWriter, r *http.Request)
}

const testExpiry = "2026-10-17 23:00:00"

func newFakeKIS(t *testing.T) *fakeKIS {
	f := &fakeKIS{t: t, tokenExpiry: testExpiry, tokenStatus: http.StatusOK, routes: map[string]func(http.ResponseWriter, *http.Request){}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKIS) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	switch r.URL.Path {
	case tokenPath:
		f.tokenCalls++
		status, expiry, n := f.tokenStatus, f.tokenExpiry, f.tokenCalls
		f.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error_code":"EGW00133","error_description":"token request limit"}`))
			return
		}
		writeJSON(w, map[string]any{
			"access_token":               "tok-" + string(rune('0'+n)),
			"access_token_token_expired": expiry,
			"token_type":                 "Bearer",
			"expires_in":                 86400,
		})
		return
	case hashKeyPath:
		f.hashCalls++
		f.hashedBody = append(f.hashedBody, body)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"HASH": hashOf(body), "BODY": json.RawMessage(body)})
		return
	}

	f.tradeCalls++
	f.lastHeaders = r.Header.Clone()
	f.lastBody = body
	f.lastQuery = map[string]string{}
	for k, v := range r.URL.Query() {
		f.lastQuery[k] = v[0]
	}
	h := f.routes[r.URL.Path]
	f.mu.Unlock()

	if h == nil {
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func (f *fakeKIS) handle(path string, status int, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		writeJSON(w, payload)
	}
}

func (f *fakeKIS) counts() (token, hash, trade int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls, f.hashCalls, f.tradeCalls
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type mapInstruments map[string]types.Instrument

func (m mapInstruments) Lookup(code string) (types.Instrument, bool) {
	i, ok := m[code]
	return i, ok
}

func newTestGateway(t *testing.T, f *fakeKIS, mode types.Mode, clock *fixedClock, extra ...func(*Params)) *Gateway {
	t.Helper()
	p := Params{
		Mode:              mode,
		AppKey:            "PSappkey0001",
		AppSecret:         "secret-value",
		Account:           "50012345-01",
		BaseURL:           f.server.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: -1,
		Clock:             clock.now,
	}
	for _, fn := range extra {
		fn(&p)
	}
	g, err := NewKIS(p)
	if err != nil {
		t.Fatalf("NewKIS: %v", err)
	}
	return g
}

func orderAccepted() map[string]any {
	return map[string]any{
		"rt_cd":  "0",
		"msg_cd": "APBK0013",
		"msg1":   "주문 전송 완료 되었습니다.",
		"output": map[string]any{
			"KRX_FWDG_ORD_ORGNO": "91252",
			"ODNO":               "0000117057",
			"ORD_TMD":            "093015",
		},
	}
}

package kis

import (
	"context"
	"net/http"
	"testing"
	"time"

	"kis-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morning() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, KST)
}

func TestTokenReusedWhileValid(t *testing.T) {
	f := newFakeKIS(t)
	clock := &fixedClock{t: morning()}
	g := newTestGateway(t, f, types.ModeSimulated, clock)

	first, err := g.auth.Token(context.Background())
	require.NoError(t, err)
	second, err := g.auth.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", first)
	assert.Equal(t, first, second)
	tokens, _, _ := f.counts()
	assert.Equal(t, 1, tokens)

	s := g.auth.Session()
	assert.Equal(t, time.Date(2026, 10, 17, 23, 0, 0, 0, KST), s.ExpiresAt)
}

func TestTokenRenewedAfterExpiry(t *testing.T) {
	f := newFakeKIS(t)
	clock := &fixedClock{t: morning()}
	g := newTestGateway(t, f, types.ModeSimulated, clock)

	_, err := g.auth.Token(context.Background())
	require.NoError(t, err)

	clock.set(time.Date(2026, 10, 17, 23, 0, 0, 0, KST))
	tok, err := g.auth.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-2", tok)
	tokens, _, _ := f.counts()
	assert.Equal(t, 2, tokens)
}

func TestTokenFailureKeepsPreviousSession(t *testing.T) {
	f := newFakeKIS(t)
	clock := &fixedClock{t: morning()}
	g := newTestGateway(t, f, types.ModeSimulated, clock)

	_, err := g.auth.Token(context.Background())
	require.NoError(t, err)
	before := g.auth.Session()

	f.mu.Lock()
	f.tokenStatus = http.StatusForbidden
	f.mu.Unlock()
	clock.set(morning().Add(24 * time.Hour))

	tok, err := g.auth.Token(context.Background())
	assert.Empty(t, tok)
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Equal(t, before, g.auth.Session())
}

func TestTokenUnparsableExpiry(t *testing.T) {
	f := newFakeKIS(t)
	f.tokenExpiry = "tomorrow"
	g := newTestGateway(t, f, types.ModeSimulated, &fixedClock{t: morning()})

	tok, err := g.auth.Token(context.Background())
	assert.Empty(t, tok)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.False(t, g.auth.Session().Valid(morning()))
}

func TestHashKeySignsExactBytes(t *testing.T) {
	f := newFakeKIS(t)
	g := newTestGateway(t, f, types.ModeSimulated, &fixedClock{t: morning()})

	body := []byte(`{"CANO":"50012345","PDNO":"005930"}`)
	h, err := g.auth.HashKey(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, hashOf(body), h)
}

func TestSessionValid(t *testing.T) {
	exp := morning()
	cases := []struct {
		name string
		s    Session
		now  time.Time
		want bool
	}{
		{"empty", Session{}, exp.Add(-time.Hour), false},
		{"before expiry", Session{AccessToken: "x", ExpiresAt: exp}, exp.Add(-time.Second), true},
		{"at expiry", Session{AccessToken: "x", ExpiresAt: exp}, exp, false},
		{"after expiry", Session{AccessToken: "x", ExpiresAt: exp}, exp.Add(time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.s.Valid(tc.now))
		})
	}
}

package kis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"kis-trading-bot/internal/api"
	"kis-trading-bot/internal/logger"
)

const (
	tokenPath   = "/oauth2/tokenP"
	hashKeyPath = "/uapi/hashkey"

	tokenExpiryLayout = "2006-01-02 15:04:05"
)

// KST is the exchange's local time; KIS timestamps carry no zone.
var KST = time.FixedZone("KST", 9*60*60)

// Session is the cached access token. The zero value is an empty session.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token may still be presented at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Authenticator owns the session and signs request bodies.
type Authenticator struct {
	creds  Credentials
	client *api.Client
	now    func() time.Time

	mu      sync.Mutex
	session Session
}

type AuthOption func(*Authenticator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) { a.now = now }
}

// WithSession seeds the cache with a previously issued token.
func WithSession(s Session) AuthOption {
	return func(a *Authenticator) { a.session = s }
}

func NewAuthenticator(creds Credentials, client *api.Client, opts ...AuthOption) *Authenticator {
	a := &Authenticator{creds: creds, client: client, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Session returns a copy of the cached session.
func (a *Authenticator) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiredAt   string `json:"access_token_token_expired"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns "Bearer <token>", requesting a new token only when the
// cached one is missing or expired. On failure it returns "" and a
// KindAuthentication error; the cached session is left as it was.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.Valid(a.now()) {
		return "Bearer " + a.session.AccessToken, nil
	}

	body := tokenRequest{
		GrantType: "client_credentials",
		AppKey:    a.creds.appKey,
		AppSecret: a.creds.appSecret,
	}
	resp, err := a.client.PostJSON(ctx, tokenPath, body, nil)
	if err != nil {
		e := authErr("token", rawBody(resp), err)
		logger.ErrorWithErr(ctx, "Access token request failed", e, "raw", e.Raw)
		return "", e
	}

	var tr tokenResponse
	if err := resp.ParseJSON(&tr); err != nil {
		e := authErr("token", resp.String(), err)
		logger.ErrorWithErr(ctx, "Access token response unreadable", e, "raw", e.Raw)
		return "", e
	}
	if tr.AccessToken == "" {
		e := authErr("token", resp.String(), errors.New("response has no access_token"))
		logger.ErrorWithErr(ctx, "Access token missing from response", e, "raw", e.Raw)
		return "", e
	}
	expiresAt, err := time.ParseInLocation(tokenExpiryLayout, strings.TrimSpace(tr.ExpiredAt), KST)
	if err != nil {
		e := authErr("token", resp.String(), err)
		logger.ErrorWithErr(ctx, "Access token expiry unparsable", e, "raw", e.Raw)
		return "", e
	}

	a.session = Session{AccessToken: tr.AccessToken, ExpiresAt: expiresAt}
	logger.Info(ctx, "Access token issued", "expires_at", expiresAt.Format(time.RFC3339), "mode", a.creds.mode)
	return "Bearer " + tr.AccessToken, nil
}

// HashKey asks the server to sign body. The result is only valid for these
// exact bytes, so it is never cached.
func (a *Authenticator) HashKey(ctx context.Context, body []byte) (string, error) {
	resp, err := a.client.POST(ctx, hashKeyPath, body, a.creds.headers())
	if err != nil {
		e := authErr("hashkey", rawBody(resp), err)
		logger.ErrorWithErr(ctx, "Hash key request failed", e, "raw", e.Raw)
		return "", e
	}

	var out struct {
		Hash string          `json:"HASH"`
		Body json.RawMessage `json:"BODY"`
	}
	if err := resp.ParseJSON(&out); err != nil {
		e := authErr("hashkey", resp.String(), err)
		logger.ErrorWithErr(ctx, "Hash key response unreadable", e, "raw", e.Raw)
		return "", e
	}
	if out.Hash == "" {
		e := authErr("hashkey", resp.String(), errors.New("response has no HASH"))
		logger.ErrorWithErr(ctx, "Hash key missing from response", e, "raw", e.Raw)
		return "", e
	}
	return out.Hash, nil
}

func rawBody(resp *api.Response) string {
	if resp == nil {
		return ""
	}
	return resp.String()
}

package kis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"kis-trading-bot/internal/types"
)

const (
	LiveDomain      = "https://openapi.koreainvestment.com:9443"
	SimulatedDomain = "https://openapivts.koreainvestment.com:29443"
)

var accountPattern = regexp.MustCompile(`^\d{8}-\d{2}$`)

// Credentials is the immutable identity of one KIS account.
type Credentials struct {
	appKey    string
	appSecret string
	account   string
	mode      types.Mode
}

// AccountKey is the account number split into the two request fields.
type AccountKey struct {
	CANO      string // first 8 digits
	ProductCD string // last 2 digits
}

func NewCredentials(appKey, appSecret, account string, mode types.Mode) (Credentials, error) {
	appKey = strings.TrimSpace(appKey)
	appSecret = strings.TrimSpace(appSecret)
	account = strings.TrimSpace(account)

	if appKey == "" || appSecret == "" {
		return Credentials{}, errors.New("kis: app key and app secret are required")
	}
	if !accountPattern.MatchString(account) {
		return Credentials{}, fmt.Errorf("kis: account %q must look like 00000000-00", account)
	}
	if mode != types.ModeLive {
		mode = types.ModeSimulated
	}
	return Credentials{appKey: appKey, appSecret: appSecret, account: account, mode: mode}, nil
}

func (c Credentials) Mode() types.Mode { return c.mode }
func (c Credentials) Account() string  { return c.account }

// Domain returns the API host for the account's mode.
func (c Credentials) Domain() string {
	if c.mode == types.ModeLive {
		return LiveDomain
	}
	return SimulatedDomain
}

// AccountKey is recomputed on every call.
func (c Credentials) AccountKey() AccountKey {
	cano, prdt, _ := strings.Cut(c.account, "-")
	return AccountKey{CANO: cano, ProductCD: prdt}
}

// headers returns the appkey/appsecret pair every KIS call carries.
func (c Credentials) headers() map[string]string {
	return map[string]string{
		"appkey":    c.appKey,
		"appsecret": c.appSecret,
	}
}

// String hides the secret so credentials can be logged.
func (c Credentials) String() string {
	return fmt.Sprintf("kis.Credentials{mode=%s account=%s appkey=%s***}", c.mode, c.account, prefix(c.appKey, 4))
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

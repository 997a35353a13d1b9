package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"kis-trading-bot/internal/types"
)

// Credentials as read from disk and the environment; validation happens in
// kis.NewCredentials.
type Credentials struct {
	AppKey    string
	AppSecret string
	Account   string
}

const credentialSep = "k=k"

// Keys in the credentials file. Live and simulated accounts are stored side
// by side; mode picks one.
const (
	keyAppKey           = "APPKey"
	keyAppSecret        = "APPSecret"
	keyLiveAccount      = "account"
	keySimulatedAccount = "saccount"
)

// ReadCredentialsFile parses lines of the form "<key>k=k<value>".
func ReadCredentialsFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, credentialSep)
		if !ok {
			return nil, fmt.Errorf("%s:%d: missing %q separator", path, n, credentialSep)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, sc.Err()
}

// LoadCredentials reads path (when it exists) and lets KIS_APP_KEY,
// KIS_APP_SECRET and KIS_ACCOUNT override what it found.
func LoadCredentials(path string, mode types.Mode) (Credentials, error) {
	var c Credentials
	if path != "" {
		kv, err := ReadCredentialsFile(path)
		switch {
		case err == nil:
			c.AppKey = kv[keyAppKey]
			c.AppSecret = kv[keyAppSecret]
			if mode.IsLive() {
				c.Account = kv[keyLiveAccount]
			} else {
				c.Account = kv[keySimulatedAccount]
			}
		case os.IsNotExist(err):
		default:
			return Credentials{}, err
		}
	}

	if v := os.Getenv("KIS_APP_KEY"); v != "" {
		c.AppKey = v
	}
	if v := os.Getenv("KIS_APP_SECRET"); v != "" {
		c.AppSecret = v
	}
	if v := os.Getenv("KIS_ACCOUNT"); v != "" {
		c.Account = v
	}

	if c.AppKey == "" || c.AppSecret == "" || c.Account == "" {
		return Credentials{}, fmt.Errorf("credentials incomplete: set %s/%s/%s in %q or KIS_* env vars",
			keyAppKey, keyAppSecret, accountKey(mode), path)
	}
	return c, nil
}

func accountKey(mode types.Mode) string {
	if mode.IsLive() {
		return keyLiveAccount
	}
	return keySimulatedAccount
}

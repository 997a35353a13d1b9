package store

import (
	"os"
	"path/filepath"
	"testing"

	"kis-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCreds(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configs")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const credsFile = "APPKeyk=kPSkey\nAPPSecretk=ksecret==\naccountk=k11111111-01\nsaccountk=k50000000-01\n"

func TestLoadCredentialsPicksAccountByMode(t *testing.T) {
	path := writeCreds(t, credsFile)

	live, err := LoadCredentials(path, types.ModeLive)
	require.NoError(t, err)
	assert.Equal(t, Credentials{AppKey: "PSkey", AppSecret: "secret==", Account: "11111111-01"}, live)

	sim, err := LoadCredentials(path, types.ModeSimulated)
	require.NoError(t, err)
	assert.Equal(t, "50000000-01", sim.Account)
}

func TestLoadCredentialsEnvOverrides(t *testing.T) {
	path := writeCreds(t, credsFile)
	t.Setenv("KIS_ACCOUNT", "22222222-01")

	c, err := LoadCredentials(path, types.ModeSimulated)
	require.NoError(t, err)
	assert.Equal(t, "22222222-01", c.Account)
	assert.Equal(t, "PSkey", c.AppKey)
}

func TestLoadCredentialsEnvOnly(t *testing.T) {
	t.Setenv("KIS_APP_KEY", "k")
	t.Setenv("KIS_APP_SECRET", "s")
	t.Setenv("KIS_ACCOUNT", "33333333-01")

	c, err := LoadCredentials(filepath.Join(t.TempDir(), "missing"), types.ModeLive)
	require.NoError(t, err)
	assert.Equal(t, "k", c.AppKey)
}

func TestLoadCredentialsIncomplete(t *testing.T) {
	path := writeCreds(t, "APPKeyk=kPSkey\n")
	_, err := LoadCredentials(path, types.ModeLive)
	assert.Error(t, err)
}

func TestReadCredentialsFileBadLine(t *testing.T) {
	path := writeCreds(t, "APPKey=PSkey\n")
	_, err := ReadCredentialsFile(path)
	assert.Error(t, err)
}

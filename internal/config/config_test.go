package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every STREAMPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"STREAMPANEL_TWITCH_CLIENT_ID",
	"STREAMPANEL_TWITCH_REDIRECT_URI",
	"STREAMPANEL_LISTEN_ADDR",
	"STREAMPANEL_DB_PATH",
	"STREAMPANEL_SECRET_KEY",
	"STREAMPANEL_NO_BROWSER",
}

// isolateConfigEnv saves and unsets all STREAMPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("STREAMPANEL_TWITCH_CLIENT_ID", "client-abc")
	t.Setenv("STREAMPANEL_TWITCH_REDIRECT_URI", "http://localhost:9090/auth/callback")
	t.Setenv("STREAMPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("STREAMPANEL_DB_PATH", "/tmp/test.db")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "client-abc", cfg.TwitchClientID)
	assert.True(t, cfg.HasClientID())
	assert.Equal(t, "http://localhost:9090/auth/callback", cfg.RedirectURI)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.True(t, cfg.OpenBrowser)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/auth/callback", cfg.RedirectURI)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "streampanel.db", cfg.DBPath)
	assert.Nil(t, cfg.SecretKey)
	assert.True(t, cfg.OpenBrowser)
}

// TestLoad_MissingClientID verifies that a missing client id is not a load
// error — the panel starts and auth flows fail with a configuration error
// until the operator sets it.
func TestLoad_MissingClientID(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.HasClientID())
}

func TestLoad_SecretKey(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("STREAMPANEL_SECRET_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()

	require.NoError(t, err)
	require.Len(t, cfg.SecretKey, 32)
}

func TestLoad_SecretKeyInvalidHex(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("STREAMPANEL_SECRET_KEY", "not-hex")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SecretKeyWrongLength(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("STREAMPANEL_SECRET_KEY", "abcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestLoad_NoBrowser(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("STREAMPANEL_NO_BROWSER", "1")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.OpenBrowser)
}

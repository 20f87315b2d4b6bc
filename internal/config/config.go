// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	TwitchClientID string
	RedirectURI    string
	ListenAddr     string
	DBPath         string
	SecretKey      []byte // 32-byte AES-256 key, or nil when encryption at rest is disabled.
	OpenBrowser    bool
}

// HasClientID returns true when a Twitch client id is configured. Without it
// the panel still starts, but authorization flows fail with a configuration
// error until the operator sets STREAMPANEL_TWITCH_CLIENT_ID.
func (c *Config) HasClientID() bool {
	return c.TwitchClientID != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. STREAMPANEL_TWITCH_CLIENT_ID is optional at startup; auth endpoints
// surface a configuration error while it is absent. Optional variables with
// defaults: STREAMPANEL_TWITCH_REDIRECT_URI
// (http://localhost:8080/auth/callback), STREAMPANEL_LISTEN_ADDR
// (127.0.0.1:8080), STREAMPANEL_DB_PATH (streampanel.db).
// STREAMPANEL_SECRET_KEY, when set, must be 64 hex characters (a 32-byte
// AES-256 key). STREAMPANEL_NO_BROWSER=1 suppresses opening the panel window.
func Load() (*Config, error) {
	clientID := os.Getenv("STREAMPANEL_TWITCH_CLIENT_ID")

	redirectURI := "http://localhost:8080/auth/callback"
	if v, ok := os.LookupEnv("STREAMPANEL_TWITCH_REDIRECT_URI"); ok {
		redirectURI = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("STREAMPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "streampanel.db"
	if v, ok := os.LookupEnv("STREAMPANEL_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("STREAMPANEL_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("STREAMPANEL_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("STREAMPANEL_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	openBrowser := true
	if v, ok := os.LookupEnv("STREAMPANEL_NO_BROWSER"); ok && v != "" {
		suppress, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("STREAMPANEL_NO_BROWSER has invalid boolean %q: %w", v, err)
		}
		openBrowser = !suppress
	}

	return &Config{
		TwitchClientID: clientID,
		RedirectURI:    redirectURI,
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		SecretKey:      secretKey,
		OpenBrowser:    openBrowser,
	}, nil
}

package model

import "time"

// PlatformTwitch is the platform key under which the broadcaster's Twitch
// credential is stored. The panel manages exactly one credential per platform.
const PlatformTwitch = "twitch"

// Credential holds the stored authorization state for one streaming platform.
// Token is the provider's token response body stored verbatim (opaque JSON
// containing at least access_token, refresh_token and expires_in).
// UpdatedAt is the time of the last token write and serves as the issuance
// reference point when computing expiry.
type Credential struct {
	ID           int64
	Platform     string
	Token        string
	DisplayName  string
	ProfileImage string
	UpdatedAt    time.Time
}

package driven

import (
	"context"

	"github.com/avelloz/streampanel/internal/domain/model"
)

// IdentityProvider defines the driven port for the platform's OAuth identity
// endpoints (device authorization plus the three token grant types). The
// adapter decodes and discriminates provider responses at the boundary;
// callers never see raw JSON shapes.
type IdentityProvider interface {
	// AuthCodeURL builds the browser authorization URL for the
	// authorization-code + PKCE flow. verifier is the locally generated PKCE
	// code verifier; the same value must later be passed to ExchangeCode.
	// Fails with a configuration error when no client id is set.
	AuthCodeURL(verifier string) (string, error)

	// StartDeviceAuthorization requests a device code, user code and
	// verification URI. Fails with a configuration error, before any network
	// I/O, when no client id is set.
	StartDeviceAuthorization(ctx context.Context) (*model.DeviceAuthorization, error)

	// PollDeviceCode performs one device-code token exchange attempt and
	// reports the discriminated outcome. It never loops or sleeps.
	PollDeviceCode(ctx context.Context, deviceCode string) (*model.DevicePollResult, error)

	// RefreshToken exchanges a refresh token for a fresh token grant.
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error)

	// ExchangeCode exchanges an authorization code plus PKCE verifier for a
	// token grant in one shot.
	ExchangeCode(ctx context.Context, code, verifier string) (*model.TokenGrant, error)
}

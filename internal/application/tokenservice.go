// Package application holds the use-case services that orchestrate the
// driven ports.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

// freshnessBuffer is the safety margin subtracted from a token's true
// expiry: tokens within 5 minutes of expiring are refreshed proactively so
// in-flight API calls don't fail mid-request.
const freshnessBuffer = 5 * time.Minute

// DefaultPollInterval is used when the provider does not advertise a device
// flow polling interval.
const DefaultPollInterval = 5 * time.Second

// ErrMissingExchangeParams is returned by ExchangeAuthorizationCode when the
// authorization code or the PKCE verifier is absent.
var ErrMissingExchangeParams = errors.New("authorization code and PKCE verifier are both required")

// tokenBlob is the subset of the stored token blob the lifecycle needs.
// The blob itself is provider-defined and stored verbatim.
type tokenBlob struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenService owns the OAuth token lifecycle for the broadcaster's
// credential: acquiring a token via the device or PKCE flow, validating its
// freshness, and refreshing it before expiry. All state lives in the
// credential store; the service itself only holds the refresh guard.
type TokenService struct {
	store    driven.CredentialStore
	identity driven.IdentityProvider
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// refreshMu serializes refreshes so two callers that both observe a
	// stale token trigger a single token-endpoint round trip.
	refreshMu sync.Mutex
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

// WithSleeper overrides the inter-poll sleep. Intended for tests, which can
// observe waits without real wall-clock delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) TokenServiceOption {
	return func(s *TokenService) { s.sleep = sleep }
}

// NewTokenService creates a TokenService with all required dependencies.
func NewTokenService(store driven.CredentialStore, identity driven.IdentityProvider, logger *slog.Logger, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		store:    store,
		identity: identity,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ValidAccessToken returns an access token that is safe to use for at least
// the freshness buffer, refreshing it first when necessary.
//
// Returns ("", nil) when no credential is stored: not-yet-connected is an
// expected steady state. A stored blob that fails to parse is treated the
// same way (fail closed, forcing re-authorization) rather than crashing the
// caller.
func (s *TokenService) ValidAccessToken(ctx context.Context) (string, error) {
	cred, err := s.store.FindOne(ctx, model.PlatformTwitch)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}

	blob, err := decodeBlob(cred.Token)
	if err != nil {
		s.logger.Warn("stored token blob is unreadable, treating account as disconnected", "error", err)
		return "", nil
	}

	if s.stale(cred.UpdatedAt, blob.ExpiresIn) {
		s.logger.Info("access token expired or expiring soon, refreshing")
		return s.Refresh(ctx)
	}

	return blob.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new token pair and
// replaces the whole stored blob with the provider's response.
//
// Refresh failures propagate as hard errors: there is no safe default token
// to return, and callers must not retry automatically — a rejected refresh
// token means the operator has to re-authorize.
//
// Concurrent callers are serialized; a caller that waited on the guard
// re-reads the credential and reuses the fresh token written by the caller
// ahead of it instead of spending a second round trip.
func (s *TokenService) Refresh(ctx context.Context) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	cred, err := s.store.FindOne(ctx, model.PlatformTwitch)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", driven.ErrNotAuthenticated
	}

	blob, err := decodeBlob(cred.Token)
	if err != nil {
		return "", fmt.Errorf("stored token blob is unreadable: %w", err)
	}

	if !s.stale(cred.UpdatedAt, blob.ExpiresIn) {
		// Another caller refreshed while we waited on the guard.
		return blob.AccessToken, nil
	}

	grant, err := s.identity.RefreshToken(ctx, blob.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	if err := s.store.Upsert(ctx, model.PlatformTwitch, string(grant.Raw)); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	s.logger.Info("access token refreshed")
	return grant.AccessToken, nil
}

// stale reports whether a token written at updatedAt with the given lifetime
// is inside the freshness buffer. The boundary instant itself is still fresh.
func (s *TokenService) stale(updatedAt time.Time, expiresIn int64) bool {
	expiry := updatedAt.Add(time.Duration(expiresIn) * time.Second)
	return s.now().Add(freshnessBuffer).After(expiry)
}

// StartDeviceAuthorization begins a device-authorization flow. The caller
// displays the verification URI and user code, then polls with
// PollDeviceToken (or AwaitDeviceAuthorization) using the device code.
func (s *TokenService) StartDeviceAuthorization(ctx context.Context) (*model.DeviceAuthorization, error) {
	return s.identity.StartDeviceAuthorization(ctx)
}

// PollDeviceToken performs exactly one device-code poll attempt. On success
// the provider's full response body is persisted as the credential — the
// single state-mutating transition in the flow. Pending results have no side
// effects, so polling is idempotent until the user authorizes.
func (s *TokenService) PollDeviceToken(ctx context.Context, deviceCode string) (*model.DevicePollResult, error) {
	result, err := s.identity.PollDeviceCode(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	if result.Status == model.PollSuccess {
		if err := s.store.Upsert(ctx, model.PlatformTwitch, string(result.Grant.Raw)); err != nil {
			return nil, fmt.Errorf("persist device flow token: %w", err)
		}
		s.logger.Info("device authorization complete, credential stored")
	}

	return result, nil
}

// AwaitDeviceAuthorization polls until the flow reaches a terminal state,
// sleeping the provider-advertised interval between pending attempts.
// Cancellation is caller-driven via ctx; an in-flight poll completes
// naturally and its result is discarded.
func (s *TokenService) AwaitDeviceAuthorization(ctx context.Context, auth *model.DeviceAuthorization) (*model.DevicePollResult, error) {
	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		result, err := s.PollDeviceToken(ctx, auth.DeviceCode)
		if err != nil {
			return nil, err
		}
		if result.Terminal() {
			return result, nil
		}

		if err := s.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// AuthCodeURL builds the browser authorization URL for the PKCE flow.
func (s *TokenService) AuthCodeURL(verifier string) (string, error) {
	return s.identity.AuthCodeURL(verifier)
}

// ExchangeAuthorizationCode completes the authorization-code + PKCE flow and
// persists the resulting grant under the same contract as the device flow.
// Terminal on failure; the one-time verifier is spent either way.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, code, verifier string) error {
	if code == "" || verifier == "" {
		return ErrMissingExchangeParams
	}

	grant, err := s.identity.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := s.store.Upsert(ctx, model.PlatformTwitch, string(grant.Raw)); err != nil {
		return fmt.Errorf("persist exchanged token: %w", err)
	}

	s.logger.Info("authorization code exchange complete, credential stored")
	return nil
}

// Disconnect deletes the stored credential for the platform, or every
// credential when all is set.
func (s *TokenService) Disconnect(ctx context.Context, all bool) error {
	if all {
		return s.store.DeleteAll(ctx)
	}
	return s.store.Delete(ctx, model.PlatformTwitch)
}

// Status returns the stored credential, or nil when disconnected.
func (s *TokenService) Status(ctx context.Context) (*model.Credential, error) {
	return s.store.FindOne(ctx, model.PlatformTwitch)
}

func decodeBlob(raw string) (*tokenBlob, error) {
	var blob tokenBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, err
	}
	if blob.AccessToken == "" {
		return nil, errors.New("token blob has no access_token")
	}
	return &blob, nil
}

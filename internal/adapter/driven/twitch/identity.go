package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

const (
	defaultIDBaseURL = "https://id.twitch.tv"

	devicePath    = "/oauth2/device"
	tokenPath     = "/oauth2/token"
	authorizePath = "/oauth2/authorize"

	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// DefaultPollInterval is used when the provider omits the polling
	// interval from a device-authorization response.
	DefaultPollInterval = 5
)

// Scopes is the canonical scope set requested on authorization. The panel
// edits channel metadata, so channel:manage:broadcast is included.
var Scopes = []string{
	"user:read:email",
	"chat:read",
	"chat:edit",
	"channel:read:subscriptions",
	"channel:manage:broadcast",
}

// ErrClientIDMissing is returned before any network I/O when the client id
// is not configured. Distinct from provider-side rejections.
var ErrClientIDMissing = errors.New("twitch client id not configured: set STREAMPANEL_TWITCH_CLIENT_ID")

// ProviderError is a rejection from a Twitch identity endpoint, carrying the
// provider's error and message fields verbatim.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twitch rejected the request: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("twitch rejected the request: %s", e.Code)
	}
	return "twitch rejected the request"
}

// Compile-time interface satisfaction check.
var _ driven.IdentityProvider = (*IdentityClient)(nil)

// IdentityClient talks to Twitch's OAuth identity endpoints. It is a public
// client: requests carry only the client id, never a secret.
type IdentityClient struct {
	clientID    string
	redirectURI string
	baseURL     string
	httpClient  *http.Client
}

// NewIdentityClient creates an IdentityClient for the production endpoints.
// clientID may be empty; operations then fail with ErrClientIDMissing.
func NewIdentityClient(clientID, redirectURI string) *IdentityClient {
	return &IdentityClient{
		clientID:    clientID,
		redirectURI: redirectURI,
		baseURL:     defaultIDBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewIdentityClientWithBaseURL creates an IdentityClient against a custom
// base URL. Intended for tests with an httptest server.
func NewIdentityClientWithBaseURL(clientID, redirectURI, baseURL string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &IdentityClient{
		clientID:    clientID,
		redirectURI: redirectURI,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
	}
}

// AuthCodeURL builds the browser authorization URL for the PKCE flow.
// The verifier doubles as the OAuth state parameter; the S256 challenge is
// derived from it by the oauth2 package.
func (c *IdentityClient) AuthCodeURL(verifier string) (string, error) {
	if c.clientID == "" {
		return "", ErrClientIDMissing
	}

	cfg := &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Scopes:      Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.baseURL + authorizePath,
			TokenURL: c.baseURL + tokenPath,
		},
	}

	return cfg.AuthCodeURL(verifier, oauth2.S256ChallengeOption(verifier)), nil
}

// StartDeviceAuthorization requests a device code, user code and
// verification URI. Fails fast, before any network call, when no client id
// is configured.
func (c *IdentityClient) StartDeviceAuthorization(ctx context.Context) (*model.DeviceAuthorization, error) {
	if c.clientID == "" {
		return nil, ErrClientIDMissing
	}

	form := url.Values{
		"client_id": {c.clientID},
		"scope":     {strings.Join(Scopes, " ")},
	}

	body, status, err := c.postForm(ctx, c.baseURL+devicePath, form)
	if err != nil {
		return nil, fmt.Errorf("device authorization request: %w", err)
	}

	var resp struct {
		model.DeviceAuthorization
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode device authorization response: %w", err)
	}

	if status < 200 || status >= 300 || resp.Error != "" {
		return nil, &ProviderError{Code: resp.Error, Message: resp.Message}
	}

	auth := resp.DeviceAuthorization
	if auth.Interval <= 0 {
		auth.Interval = DefaultPollInterval
	}
	return &auth, nil
}

// PollDeviceCode performs one device-code token exchange attempt.
// Twitch answers 200 with an access_token once the user authorizes, and 400
// with message "authorization_pending" while the user has not yet finished.
func (c *IdentityClient) PollDeviceCode(ctx context.Context, deviceCode string) (*model.DevicePollResult, error) {
	if c.clientID == "" {
		return nil, ErrClientIDMissing
	}

	form := url.Values{
		"client_id":   {c.clientID},
		"device_code": {deviceCode},
		"grant_type":  {deviceGrantType},
	}

	body, status, err := c.postForm(ctx, c.baseURL+tokenPath, form)
	if err != nil {
		return nil, fmt.Errorf("device code exchange: %w", err)
	}

	resp, err := decodeTokenResponse(body)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300 && resp.AccessToken != "":
		return &model.DevicePollResult{
			Status: model.PollSuccess,
			Grant:  resp.grant(body),
		}, nil
	case resp.Message == "authorization_pending":
		return &model.DevicePollResult{Status: model.PollPending}, nil
	case resp.Error == "expired_token":
		return &model.DevicePollResult{Status: model.PollExpired}, nil
	default:
		detail := resp.Error
		if detail == "" {
			detail = resp.Message
		}
		return &model.DevicePollResult{Status: model.PollFailed, Detail: detail}, nil
	}
}

// RefreshToken exchanges a refresh token for a fresh token grant.
func (c *IdentityClient) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	if c.clientID == "" {
		return nil, ErrClientIDMissing
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
	}

	return c.tokenGrant(ctx, form)
}

// ExchangeCode exchanges an authorization code plus PKCE verifier for a
// token grant.
func (c *IdentityClient) ExchangeCode(ctx context.Context, code, verifier string) (*model.TokenGrant, error) {
	if c.clientID == "" {
		return nil, ErrClientIDMissing
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"code":          {code},
		"code_verifier": {verifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.redirectURI},
	}

	return c.tokenGrant(ctx, form)
}

// tokenGrant posts a token-endpoint form and requires a success grant.
// Any response without an access_token is a provider rejection.
func (c *IdentityClient) tokenGrant(ctx context.Context, form url.Values) (*model.TokenGrant, error) {
	body, _, err := c.postForm(ctx, c.baseURL+tokenPath, form)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	resp, err := decodeTokenResponse(body)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return nil, &ProviderError{Code: resp.Error, Message: resp.Message}
	}

	return resp.grant(body), nil
}

// postForm issues a form-encoded POST and returns the response body and status.
func (c *IdentityClient) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}

// tokenResponse is the decoded shape of a Twitch token-endpoint response.
// Success carries access_token; rejections carry error/message; the device
// grant signals "still waiting" via message even on an HTTP error status.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	Scope        []string `json:"scope"`
	TokenType    string   `json:"token_type"`
	Error        string   `json:"error"`
	Message      string   `json:"message"`
}

func decodeTokenResponse(body []byte) (*tokenResponse, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &resp, nil
}

// grant converts a success response into a TokenGrant, preserving the raw
// body so the store can persist the blob verbatim.
func (r *tokenResponse) grant(raw []byte) *model.TokenGrant {
	return &model.TokenGrant{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		Scope:        r.Scope,
		TokenType:    r.TokenType,
		Raw:          raw,
	}
}

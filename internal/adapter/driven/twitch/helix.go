package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

const defaultHelixBaseURL = "https://api.twitch.tv/helix"

// Compile-time interface satisfaction check.
var _ driven.StreamingAPI = (*HelixClient)(nil)

// HelixClient implements the StreamingAPI port against the Twitch Helix API.
// The transport is wrapped with httpcache so conditional requests for
// slow-moving resources (users, channels) are served from the in-memory
// ETag cache.
type HelixClient struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
}

// NewHelixClient creates a HelixClient for the production endpoints.
func NewHelixClient(clientID string) *HelixClient {
	return &HelixClient{
		clientID: clientID,
		baseURL:  defaultHelixBaseURL,
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   15 * time.Second,
		},
	}
}

// NewHelixClientWithBaseURL creates a HelixClient against a custom base URL.
// Intended for tests with an httptest server.
func NewHelixClientWithBaseURL(clientID, baseURL string, httpClient *http.Client) *HelixClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HelixClient{
		clientID:   clientID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// apiError is a non-success Helix response body.
type apiError struct {
	Status  int    `json:"status"`
	Err     string `json:"error"`
	Message string `json:"message"`
}

// CurrentUser returns the profile of the token's owner.
func (c *HelixClient) CurrentUser(ctx context.Context, token string) (*model.UserProfile, error) {
	var envelope struct {
		Data []struct {
			ID              string `json:"id"`
			Login           string `json:"login"`
			DisplayName     string `json:"display_name"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"data"`
	}

	if err := c.get(ctx, token, "/users", nil, &envelope); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("get current user: empty response")
	}

	u := envelope.Data[0]
	return &model.UserProfile{
		ID:              u.ID,
		Login:           u.Login,
		DisplayName:     u.DisplayName,
		ProfileImageURL: u.ProfileImageURL,
	}, nil
}

// Channel returns the channel metadata for the broadcaster.
func (c *HelixClient) Channel(ctx context.Context, token, broadcasterID string) (*model.ChannelInfo, error) {
	var envelope struct {
		Data []struct {
			BroadcasterID string   `json:"broadcaster_id"`
			Title         string   `json:"title"`
			GameID        string   `json:"game_id"`
			GameName      string   `json:"game_name"`
			Language      string   `json:"broadcaster_language"`
			Tags          []string `json:"tags"`
		} `json:"data"`
	}

	query := url.Values{"broadcaster_id": {broadcasterID}}
	if err := c.get(ctx, token, "/channels", query, &envelope); err != nil {
		return nil, fmt.Errorf("get channel %s: %w", broadcasterID, err)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("get channel %s: empty response", broadcasterID)
	}

	ch := envelope.Data[0]
	tags := ch.Tags
	if tags == nil {
		tags = []string{}
	}
	return &model.ChannelInfo{
		BroadcasterID: ch.BroadcasterID,
		Title:         ch.Title,
		GameID:        ch.GameID,
		GameName:      ch.GameName,
		Language:      ch.Language,
		Tags:          tags,
	}, nil
}

// ModifyChannel patches channel metadata. Only fields set in upd are sent;
// Helix answers 204 No Content on success.
func (c *HelixClient) ModifyChannel(ctx context.Context, token, broadcasterID string, upd model.ChannelUpdate) error {
	payload := map[string]string{}
	if upd.Title != "" {
		payload["title"] = upd.Title
	}
	if upd.GameID != "" {
		payload["game_id"] = upd.GameID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal channel update: %w", err)
	}

	endpoint := c.baseURL + "/channels?" + url.Values{"broadcaster_id": {broadcasterID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create channel update request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update channel %s: %w", broadcasterID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return fmt.Errorf("update channel %s: %w", broadcasterID, readAPIError(resp))
}

// SearchCategories returns categories matching the query.
func (c *HelixClient) SearchCategories(ctx context.Context, token, query string) ([]model.Category, error) {
	var envelope struct {
		Data []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			BoxArtURL string `json:"box_art_url"`
		} `json:"data"`
	}

	params := url.Values{"query": {query}}
	if err := c.get(ctx, token, "/search/categories", params, &envelope); err != nil {
		return nil, fmt.Errorf("search categories %q: %w", query, err)
	}

	categories := make([]model.Category, 0, len(envelope.Data))
	for _, d := range envelope.Data {
		categories = append(categories, model.Category{
			ID:        d.ID,
			Name:      d.Name,
			BoxArtURL: d.BoxArtURL,
		})
	}
	return categories, nil
}

// FollowerTotal returns the channel's total follower count. The total is
// returned at the top level of this particular Helix response.
func (c *HelixClient) FollowerTotal(ctx context.Context, token, broadcasterID string) (int, error) {
	var envelope struct {
		Total int `json:"total"`
	}

	query := url.Values{"broadcaster_id": {broadcasterID}}
	if err := c.get(ctx, token, "/channels/followers", query, &envelope); err != nil {
		return 0, fmt.Errorf("get follower total for %s: %w", broadcasterID, err)
	}
	return envelope.Total, nil
}

// Stream returns the live stream for the user, or nil when offline.
func (c *HelixClient) Stream(ctx context.Context, token, userID string) (*model.Stream, error) {
	var envelope struct {
		Data []struct {
			ID          string `json:"id"`
			GameName    string `json:"game_name"`
			Title       string `json:"title"`
			ViewerCount int    `json:"viewer_count"`
		} `json:"data"`
	}

	query := url.Values{"user_id": {userID}}
	if err := c.get(ctx, token, "/streams", query, &envelope); err != nil {
		return nil, fmt.Errorf("get stream for %s: %w", userID, err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	s := envelope.Data[0]
	return &model.Stream{
		ID:          s.ID,
		GameName:    s.GameName,
		Title:       s.Title,
		ViewerCount: s.ViewerCount,
	}, nil
}

// get issues an authenticated GET and decodes the JSON response into out.
func (c *HelixClient) get(ctx context.Context, token, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// setHeaders attaches the bearer token and client id header every Helix call
// requires.
func (c *HelixClient) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.clientID)
}

// readAPIError decodes a non-success Helix body into an error carrying the
// provider's message.
func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("helix status %d", resp.StatusCode)
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("helix status %d: %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("helix status %d", resp.StatusCode)
}

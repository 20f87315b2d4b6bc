package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

// minCategoryQueryLen is the shortest category search the service forwards
// to the API; shorter queries return an empty result without a network call.
const minCategoryQueryLen = 2

// ChannelService orchestrates the Helix resource calls behind the panel:
// channel metadata, category search, live stats and profile sync. Every
// operation first obtains a validated access token from the TokenService;
// a provider-side rejection of that token is surfaced as a plain error, not
// retried.
type ChannelService struct {
	tokens *TokenService
	api    driven.StreamingAPI
	store  driven.CredentialStore
	logger *slog.Logger

	// The broadcaster's own user id is immutable for the life of a
	// credential, so it is resolved once and cached.
	mu            sync.RWMutex
	broadcasterID string
}

// NewChannelService creates a ChannelService with all required dependencies.
func NewChannelService(tokens *TokenService, api driven.StreamingAPI, store driven.CredentialStore, logger *slog.Logger) *ChannelService {
	return &ChannelService{
		tokens: tokens,
		api:    api,
		store:  store,
		logger: logger,
	}
}

// Channel returns the current channel metadata, or (nil, nil) when the
// account is not connected.
func (s *ChannelService) Channel(ctx context.Context) (*model.ChannelInfo, error) {
	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	id, err := s.resolveBroadcasterID(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.api.Channel(ctx, token, id)
}

// UpdateChannel patches the channel's title and/or category. Empty fields
// are omitted; an entirely empty update is rejected locally.
func (s *ChannelService) UpdateChannel(ctx context.Context, upd model.ChannelUpdate) error {
	if upd.IsEmpty() {
		return fmt.Errorf("nothing to update: provide a title or a game id")
	}

	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return driven.ErrNotAuthenticated
	}

	id, err := s.resolveBroadcasterID(ctx, token)
	if err != nil {
		return err
	}

	if err := s.api.ModifyChannel(ctx, token, id, upd); err != nil {
		return err
	}

	s.logger.Info("channel updated", "title", upd.Title, "game_id", upd.GameID)
	return nil
}

// SearchCategories returns categories matching the query. Queries shorter
// than two characters return an empty slice without calling the API.
func (s *ChannelService) SearchCategories(ctx context.Context, query string) ([]model.Category, error) {
	if utf8.RuneCountInString(query) < minCategoryQueryLen {
		return []model.Category{}, nil
	}

	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, driven.ErrNotAuthenticated
	}

	return s.api.SearchCategories(ctx, token, query)
}

// LiveStats aggregates follower count and live stream state for the panel's
// stats widget. Returns (nil, nil) when the account is not connected.
func (s *ChannelService) LiveStats(ctx context.Context) (*model.StreamStats, error) {
	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	id, err := s.resolveBroadcasterID(ctx, token)
	if err != nil {
		return nil, err
	}

	followers, err := s.api.FollowerTotal(ctx, token, id)
	if err != nil {
		return nil, err
	}

	stream, err := s.api.Stream(ctx, token, id)
	if err != nil {
		return nil, err
	}

	stats := &model.StreamStats{Followers: followers}
	if stream != nil {
		stats.Live = true
		stats.ViewerCount = stream.ViewerCount
		stats.GameName = stream.GameName
	}
	return stats, nil
}

// SyncProfile fetches the broadcaster's profile and caches the display
// fields on the credential row. The token blob and its updated_at reference
// are left untouched.
func (s *ChannelService) SyncProfile(ctx context.Context) (*model.UserProfile, error) {
	token, err := s.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, driven.ErrNotAuthenticated
	}

	profile, err := s.api.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateProfile(ctx, model.PlatformTwitch, profile.DisplayName, profile.ProfileImageURL); err != nil {
		return nil, fmt.Errorf("cache profile: %w", err)
	}

	s.logger.Info("profile synced", "display_name", profile.DisplayName)
	return profile, nil
}

// Reset drops the cached broadcaster id. Called on disconnect so a future
// connection under a different account does not reuse the old id.
func (s *ChannelService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasterID = ""
}

// resolveBroadcasterID returns the cached broadcaster user id, resolving it
// via the users endpoint on first use.
func (s *ChannelService) resolveBroadcasterID(ctx context.Context, token string) (string, error) {
	s.mu.RLock()
	id := s.broadcasterID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	profile, err := s.api.CurrentUser(ctx, token)
	if err != nil {
		return "", fmt.Errorf("resolve broadcaster id: %w", err)
	}

	s.mu.Lock()
	s.broadcasterID = profile.ID
	s.mu.Unlock()
	return profile.ID, nil
}

package driven

import (
	"context"

	"github.com/avelloz/streampanel/internal/domain/model"
)

// StreamingAPI defines the driven port for the platform's resource API
// (Helix). Every call receives the bearer token to attach; token freshness
// is the caller's concern. A provider-side 401 surfaces as a plain error --
// there is no automatic refresh-and-retry at this layer.
type StreamingAPI interface {
	// CurrentUser returns the profile of the token's owner.
	CurrentUser(ctx context.Context, token string) (*model.UserProfile, error)

	// Channel returns the channel metadata for the broadcaster.
	Channel(ctx context.Context, token, broadcasterID string) (*model.ChannelInfo, error)

	// ModifyChannel patches channel metadata. Only fields set in upd are sent.
	ModifyChannel(ctx context.Context, token, broadcasterID string, upd model.ChannelUpdate) error

	// SearchCategories returns categories matching the query.
	SearchCategories(ctx context.Context, token, query string) ([]model.Category, error)

	// FollowerTotal returns the channel's total follower count.
	FollowerTotal(ctx context.Context, token, broadcasterID string) (int, error)

	// Stream returns the live stream for the user, or nil when offline.
	Stream(ctx context.Context, token, userID string) (*model.Stream, error)
}

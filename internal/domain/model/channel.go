package model

// UserProfile is the broadcaster's own Helix user record.
type UserProfile struct {
	ID              string
	Login           string
	DisplayName     string
	ProfileImageURL string
}

// ChannelInfo is the live channel metadata shown and edited in the panel.
type ChannelInfo struct {
	BroadcasterID string
	Title         string
	GameID        string
	GameName      string
	Language      string
	Tags          []string
}

// ChannelUpdate carries the metadata fields to modify. Empty fields are
// omitted from the request so a title-only or category-only edit is possible.
type ChannelUpdate struct {
	Title  string
	GameID string
}

// IsEmpty reports whether the update carries no fields at all.
func (u ChannelUpdate) IsEmpty() bool {
	return u.Title == "" && u.GameID == ""
}

// Category is a Helix game/category search result.
type Category struct {
	ID        string
	Name      string
	BoxArtURL string
}

// Stream is a single live stream record from the streams endpoint.
type Stream struct {
	ID          string
	GameName    string
	Title       string
	ViewerCount int
}

// StreamStats is the aggregate live view of the channel.
type StreamStats struct {
	Followers   int
	Live        bool
	ViewerCount int
	GameName    string
}

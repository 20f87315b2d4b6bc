package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/avelloz/streampanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AuthStatusResponse is the JSON representation of the connection state.
type AuthStatusResponse struct {
	Connected    bool   `json:"connected"`
	Platform     string `json:"platform,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	ConnectedAt  string `json:"connected_at,omitempty"`
}

// DeviceStartResponse is the JSON representation of a started device flow.
type DeviceStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// DevicePollRequest is the JSON body for a device flow poll attempt.
type DevicePollRequest struct {
	DeviceCode string `json:"device_code"`
}

// DevicePollResponse is the JSON representation of one poll attempt's outcome.
type DevicePollResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ChannelResponse is the JSON representation of the channel metadata.
type ChannelResponse struct {
	BroadcasterID string   `json:"broadcaster_id"`
	Title         string   `json:"title"`
	GameID        string   `json:"game_id"`
	GameName      string   `json:"game_name"`
	Language      string   `json:"language"`
	Tags          []string `json:"tags"`
}

// UpdateChannelRequest is the JSON body for the channel update endpoint.
// Empty fields are left unchanged.
type UpdateChannelRequest struct {
	Title  string `json:"title"`
	GameID string `json:"game_id"`
}

// CategoryResponse is the JSON representation of a stream category.
type CategoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

// StatsResponse is the JSON representation of the live stats widget data.
type StatsResponse struct {
	Followers   int    `json:"followers"`
	Live        bool   `json:"live"`
	ViewerCount int    `json:"viewer_count"`
	GameName    string `json:"game_name"`
}

// ProfileResponse is the JSON representation of the broadcaster's profile.
type ProfileResponse struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toAuthStatusResponse converts a stored credential to its status representation.
// A nil credential means no account is connected.
func toAuthStatusResponse(cred *model.Credential) AuthStatusResponse {
	if cred == nil {
		return AuthStatusResponse{Connected: false}
	}

	return AuthStatusResponse{
		Connected:    true,
		Platform:     cred.Platform,
		DisplayName:  cred.DisplayName,
		ProfileImage: cred.ProfileImage,
		ConnectedAt:  cred.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toDeviceStartResponse converts a domain DeviceAuthorization to its JSON
// representation. The device code is returned to the panel so it can drive
// the poll loop; it is never shown to the user.
func toDeviceStartResponse(auth *model.DeviceAuthorization) DeviceStartResponse {
	return DeviceStartResponse{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		ExpiresIn:       auth.ExpiresIn,
		Interval:        auth.Interval,
	}
}

// toDevicePollResponse converts a domain DevicePollResult to its JSON
// representation. The token grant itself is persisted server-side and never
// leaves the process.
func toDevicePollResponse(result *model.DevicePollResult) DevicePollResponse {
	return DevicePollResponse{
		Status: string(result.Status),
		Detail: result.Detail,
	}
}

// toChannelResponse converts domain ChannelInfo to its JSON representation.
func toChannelResponse(info *model.ChannelInfo) ChannelResponse {
	tags := info.Tags
	if tags == nil {
		tags = []string{}
	}

	return ChannelResponse{
		BroadcasterID: info.BroadcasterID,
		Title:         info.Title,
		GameID:        info.GameID,
		GameName:      info.GameName,
		Language:      info.Language,
		Tags:          tags,
	}
}

// toCategoryResponse converts a domain Category to its JSON representation.
func toCategoryResponse(c model.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		BoxArtURL: c.BoxArtURL,
	}
}

// toStatsResponse converts domain StreamStats to its JSON representation.
func toStatsResponse(stats *model.StreamStats) StatsResponse {
	return StatsResponse{
		Followers:   stats.Followers,
		Live:        stats.Live,
		ViewerCount: stats.ViewerCount,
		GameName:    stats.GameName,
	}
}

// toProfileResponse converts a domain UserProfile to its JSON representation.
func toProfileResponse(p *model.UserProfile) ProfileResponse {
	return ProfileResponse{
		ID:              p.ID,
		Login:           p.Login,
		DisplayName:     p.DisplayName,
		ProfileImageURL: p.ProfileImageURL,
	}
}

// Package httphandler is the HTTP driving adapter that serves the panel's
// REST API and the OAuth redirect endpoints.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/avelloz/streampanel/internal/adapter/driven/twitch"
	"github.com/avelloz/streampanel/internal/application"
	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

// verifierCookie carries the PKCE code verifier between the login redirect
// and the callback. HttpOnly and scoped to the callback path; the verifier is
// single-use and the cookie is cleared on the first callback hit.
const verifierCookie = "twitch_code_verifier"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	tokens   *application.TokenService
	channels *application.ChannelService
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(tokens *application.TokenService, channels *application.ChannelService, logger *slog.Logger) *Handler {
	return &Handler{
		tokens:   tokens,
		channels: channels,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. extra, when non-nil, registers
// additional routes (the static panel UI) on the same mux.
func NewServeMux(h *Handler, logger *slog.Logger, extra func(mux *http.ServeMux)) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)

	mux.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)
	mux.HandleFunc("POST /api/v1/auth/device", h.StartDeviceFlow)
	mux.HandleFunc("POST /api/v1/auth/device/poll", h.PollDeviceFlow)
	mux.HandleFunc("POST /api/v1/auth/sync-profile", h.SyncProfile)
	mux.HandleFunc("POST /api/v1/auth/disconnect", h.Disconnect)

	mux.HandleFunc("GET /api/v1/channel", h.GetChannel)
	mux.HandleFunc("PATCH /api/v1/channel", h.UpdateChannel)
	mux.HandleFunc("GET /api/v1/categories", h.SearchCategories)
	mux.HandleFunc("GET /api/v1/stats", h.LiveStats)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	if extra != nil {
		extra(mux)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Login starts the authorization-code + PKCE flow: it generates a fresh
// verifier, parks it in an HttpOnly cookie, and redirects the browser to the
// provider's consent page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	verifier := oauth2.GenerateVerifier()

	authURL, err := h.tokens.AuthCodeURL(verifier)
	if err != nil {
		h.writeProviderError(w, "build authorization url", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		Path:     "/auth/callback",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the PKCE flow. The state parameter must match the
// parked verifier; the cookie is cleared before any exchange attempt so a
// failed or replayed callback cannot reuse the verifier.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(verifierCookie)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no login in progress")
		return
	}
	clearCookie(w, verifierCookie, "/auth/callback")

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("authorization denied at provider", "error", errParam)
		http.Redirect(w, r, "/?auth_error="+errParam, http.StatusFound)
		return
	}

	if r.URL.Query().Get("state") != cookie.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if err := h.tokens.ExchangeAuthorizationCode(r.Context(), code, cookie.Value); err != nil {
		if errors.Is(err, application.ErrMissingExchangeParams) {
			writeError(w, http.StatusBadRequest, "missing authorization code")
			return
		}
		h.writeProviderError(w, "exchange authorization code", err)
		return
	}

	// Best effort: a stale display name fixes itself on the next sync.
	if _, err := h.channels.SyncProfile(r.Context()); err != nil {
		h.logger.Warn("profile sync after login failed", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// AuthStatus returns whether an account is connected and its display fields.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	cred, err := h.tokens.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to read auth status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toAuthStatusResponse(cred))
}

// StartDeviceFlow begins a device-authorization flow and returns the codes
// the panel needs to display and poll with.
func (h *Handler) StartDeviceFlow(w http.ResponseWriter, r *http.Request) {
	auth, err := h.tokens.StartDeviceAuthorization(r.Context())
	if err != nil {
		h.writeProviderError(w, "start device authorization", err)
		return
	}

	writeJSON(w, http.StatusOK, toDeviceStartResponse(auth))
}

// PollDeviceFlow performs one device-code poll attempt on behalf of the
// panel's poll loop. Pending is a normal 200 outcome, not an error.
func (h *Handler) PollDeviceFlow(w http.ResponseWriter, r *http.Request) {
	var req DevicePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DeviceCode == "" {
		writeError(w, http.StatusBadRequest, "device_code is required")
		return
	}

	result, err := h.tokens.PollDeviceToken(r.Context(), req.DeviceCode)
	if err != nil {
		h.writeProviderError(w, "poll device code", err)
		return
	}

	if result.Status == model.PollSuccess {
		if _, err := h.channels.SyncProfile(r.Context()); err != nil {
			h.logger.Warn("profile sync after device authorization failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, toDevicePollResponse(result))
}

// SyncProfile refreshes the cached display name and avatar from the API.
func (h *Handler) SyncProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.channels.SyncProfile(r.Context())
	if err != nil {
		if errors.Is(err, driven.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "not connected")
			return
		}
		h.writeProviderError(w, "sync profile", err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// Disconnect deletes the stored credential. With ?all=1 every platform's
// credential is removed.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "1"

	if err := h.tokens.Disconnect(r.Context(), all); err != nil {
		h.logger.Error("failed to disconnect", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.channels.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// GetChannel returns the current channel metadata.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	info, err := h.channels.Channel(r.Context())
	if err != nil {
		h.writeProviderError(w, "get channel", err)
		return
	}
	if info == nil {
		writeError(w, http.StatusUnauthorized, "not connected")
		return
	}

	writeJSON(w, http.StatusOK, toChannelResponse(info))
}

// UpdateChannel patches the channel title and/or category.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	var req UpdateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := model.ChannelUpdate{Title: req.Title, GameID: req.GameID}
	if upd.IsEmpty() {
		writeError(w, http.StatusBadRequest, "nothing to update: provide a title or a game_id")
		return
	}

	if err := h.channels.UpdateChannel(r.Context(), upd); err != nil {
		if errors.Is(err, driven.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "not connected")
			return
		}
		h.writeProviderError(w, "update channel", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchCategories returns categories matching the query parameter.
func (h *Handler) SearchCategories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	categories, err := h.channels.SearchCategories(r.Context(), query)
	if err != nil {
		if errors.Is(err, driven.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "not connected")
			return
		}
		h.writeProviderError(w, "search categories", err)
		return
	}

	resp := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, toCategoryResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// LiveStats returns follower count and live stream state.
func (h *Handler) LiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.channels.LiveStats(r.Context())
	if err != nil {
		h.writeProviderError(w, "get live stats", err)
		return
	}
	if stats == nil {
		writeError(w, http.StatusUnauthorized, "not connected")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeProviderError maps upstream failures to a response: a missing client
// id is an operator configuration problem (503), a provider rejection
// surfaces the provider's message (502), anything else is a plain 500.
func (h *Handler) writeProviderError(w http.ResponseWriter, op string, err error) {
	var provErr *twitch.ProviderError

	switch {
	case errors.Is(err, twitch.ErrClientIDMissing):
		writeError(w, http.StatusServiceUnavailable, "twitch client id is not configured")
	case errors.As(err, &provErr):
		h.logger.Error("provider rejected request", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, provErr.Message)
	case errors.Is(err, driven.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not connected")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clearCookie expires the named cookie on the given path.
func clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

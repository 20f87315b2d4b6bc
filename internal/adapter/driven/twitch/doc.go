// Package twitch implements the IdentityProvider and StreamingAPI driven
// ports against Twitch's id and Helix endpoints.
//
// Token grants use manual HTTP requests rather than oauth2.Config exchanges
// because Twitch's device flow is non-standard in two ways:
//   - "still waiting" is signaled by a message field equal to
//     "authorization_pending" on an HTTP 400 response, not by the standard
//     error code, which breaks oauth2's DeviceAccessToken polling
//   - the panel persists the token response body verbatim, so the adapter
//     must hand back raw bytes alongside the decoded grant
//
// The authorization-code + PKCE flow still uses golang.org/x/oauth2 for
// verifier generation and authorize-URL construction (S256 challenge).
package twitch

// Package services defines the [Platform] interface for streaming platforms and implements it for
// Spotify, with a placeholder for Apple Music.
//
// # Platform Interface
//
// Each platform exposes the same operations (token exchange and refresh, profile lookup, playlist
// creation and population, listening history and catalog search) so the pipeline can treat users
// uniformly. A [Registry] resolves the client for a user's platform.
//
// # Spotify Implementation
//
// [SpotifyPlatform] exchanges and refreshes user tokens through [oauth2.Config] with client
// credentials sent as HTTP basic auth. Catalog search uses an application token from the
// client-credentials grant, cached until it expires. Web API calls share a [rate.Limiter].
//
// # Apple Music
//
// [AppleMusicPlatform] fails every API call with [shared.ErrUnsupportedPlatform].
//
// # Error Handling
//
//   - [shared.ErrAPIRequest] : non-2xx responses, returned as [*APIError] with status and body
//   - [shared.ErrRefreshFailed] : refresh_token grant rejected
//   - [shared.ErrAuthFailed] : authorization_code or client_credentials grant rejected
//   - [shared.ErrUnsupportedPlatform] : unknown or unimplemented platform
//   - [shared.ErrConversionUnsupported] : [ConvertTrack] across platforms
package services

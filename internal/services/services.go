// package services defines interface Platform for interacting with streaming platform APIs
//
// Spotify (full), Apple Music (stub)
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

// Platform is a streaming platform client. Every call either returns its data or an error; callers
// never see partial data alongside an error.
type Platform interface {
	// Name returns the platform identifier stored alongside users and credentials.
	Name() models.Platform

	// AuthURL returns the consent page a user visits to link their account.
	AuthURL(state string) string

	// GetTokens exchanges an authorization code for user tokens.
	GetTokens(ctx context.Context, code string) (*Tokens, error)

	// RefreshTokens obtains a new access token. The returned refresh token is empty when the
	// platform did not rotate it.
	RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error)

	// GetUserID returns the platform's id for the token's owner.
	GetUserID(ctx context.Context, accessToken string) (string, error)

	// CreatePlaylist creates an empty playlist on the user's account and returns its platform id.
	CreatePlaylist(ctx context.Context, accessToken, platformUserID string, spec PlaylistSpec) (string, error)

	// PopulatePlaylist appends tracks to a playlist in order.
	PopulatePlaylist(ctx context.Context, accessToken, playlistID string, trackIDs []string) error

	// GetRecentTracks returns the user's recently played tracks, newest first.
	GetRecentTracks(ctx context.Context, accessToken string) ([]Track, error)

	// SearchTracks searches the catalog with application credentials.
	SearchTracks(ctx context.Context, query string) ([]Track, error)

	// PlaylistURL returns a deep link that opens the playlist in the platform's app.
	PlaylistURL(playlistID string) string
}

// Tokens is the result of a token exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// PlaylistSpec describes a playlist to create.
type PlaylistSpec struct {
	Name        string
	Description string
	Public      bool
}

// Track represents a track from any platform. PlayedAt is only set for listening history.
type Track struct {
	ID            string
	Name          string
	Artists       string
	AlbumImageURL string
	PlayedAt      time.Time
}

// APIError is returned when a platform answers with a non-2xx status.
type APIError struct {
	Platform   models.Platform
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Unwrap lets callers match on [shared.ErrAPIRequest].
func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// StatusCode extracts the HTTP status from an [APIError] chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Registry resolves platform clients by name.
type Registry struct {
	platforms map[models.Platform]Platform
}

// NewRegistry creates a [Registry] holding the given clients.
func NewRegistry(platforms ...Platform) *Registry {
	r := &Registry{platforms: make(map[models.Platform]Platform, len(platforms))}
	for _, p := range platforms {
		r.platforms[p.Name()] = p
	}
	return r
}

// Lookup returns the client for a platform, or [shared.ErrUnsupportedPlatform].
func (r *Registry) Lookup(name models.Platform) (Platform, error) {
	p, ok := r.platforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, name)
	}
	return p, nil
}

// ConvertTrack maps a track id from one platform to another. Only identity conversions succeed;
// cross-platform matching is not supported and fails with [shared.ErrConversionUnsupported].
func ConvertTrack(trackID string, from, to models.Platform) (string, error) {
	if from == to {
		return trackID, nil
	}
	return "", fmt.Errorf("%w: %s -> %s", shared.ErrConversionUnsupported, from, to)
}

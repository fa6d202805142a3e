package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/shared"
)

// Playlist records a playlist created on a user's platform.
// SessionID is empty for catch-up playlists that do not belong to a session.
type Playlist struct {
	ID                 string
	UserID             string
	Platform           Platform
	SessionID          string
	PlatformPlaylistID string
	CreatedAt          time.Time
}

func (p *Playlist) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: playlist user id is required", shared.ErrInvalidInput)
	}
	if p.PlatformPlaylistID == "" {
		return fmt.Errorf("%w: platform playlist id is required", shared.ErrInvalidInput)
	}
	if !p.Platform.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, p.Platform)
	}
	return nil
}

// PlaylistTrack is one entry of a persisted playlist, credited to the friend who shared it.
type PlaylistTrack struct {
	ID          string
	PlaylistID  string
	Position    int
	TrackID     string
	SubmittedBy string
}

// TrackPlay is a single play event pulled from a user's listening history.
type TrackPlay struct {
	UserID        string
	Platform      Platform
	TrackID       string
	TrackName     string
	Artists       string
	AlbumImageURL string
	PlayedAt      time.Time
}

package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

const appleMusicPlaylistURL = "https://music.apple.com/playlist/"

// AppleMusicPlatform is a placeholder client: every API call fails with
// [shared.ErrUnsupportedPlatform] so users linked to Apple Music fail per-user instead of
// aborting a run.
type AppleMusicPlatform struct{}

// NewAppleMusicPlatform creates an [AppleMusicPlatform].
func NewAppleMusicPlatform() *AppleMusicPlatform {
	return &AppleMusicPlatform{}
}

func (a *AppleMusicPlatform) Name() models.Platform { return models.PlatformAppleMusic }

func (a *AppleMusicPlatform) AuthURL(string) string { return "" }

func (a *AppleMusicPlatform) GetTokens(context.Context, string) (*Tokens, error) {
	return nil, a.unsupported("GetTokens")
}

func (a *AppleMusicPlatform) RefreshTokens(context.Context, string) (*Tokens, error) {
	return nil, a.unsupported("RefreshTokens")
}

func (a *AppleMusicPlatform) GetUserID(context.Context, string) (string, error) {
	return "", a.unsupported("GetUserID")
}

func (a *AppleMusicPlatform) CreatePlaylist(context.Context, string, string, PlaylistSpec) (string, error) {
	return "", a.unsupported("CreatePlaylist")
}

func (a *AppleMusicPlatform) PopulatePlaylist(context.Context, string, string, []string) error {
	return a.unsupported("PopulatePlaylist")
}

func (a *AppleMusicPlatform) GetRecentTracks(context.Context, string) ([]Track, error) {
	return nil, a.unsupported("GetRecentTracks")
}

func (a *AppleMusicPlatform) SearchTracks(context.Context, string) ([]Track, error) {
	return nil, a.unsupported("SearchTracks")
}

func (a *AppleMusicPlatform) PlaylistURL(playlistID string) string {
	return appleMusicPlaylistURL + playlistID
}

func (a *AppleMusicPlatform) unsupported(op string) error {
	return fmt.Errorf("%w: apple music %s not implemented yet", shared.ErrUnsupportedPlatform, op)
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

func TestAppleMusicPlatform(t *testing.T) {
	ctx := context.Background()
	p := NewAppleMusicPlatform()

	calls := map[string]func() error{
		"GetTokens":        func() error { _, err := p.GetTokens(ctx, "code"); return err },
		"RefreshTokens":    func() error { _, err := p.RefreshTokens(ctx, "refresh"); return err },
		"GetUserID":        func() error { _, err := p.GetUserID(ctx, "token"); return err },
		"CreatePlaylist":   func() error { _, err := p.CreatePlaylist(ctx, "token", "user", PlaylistSpec{}); return err },
		"PopulatePlaylist": func() error { return p.PopulatePlaylist(ctx, "token", "pl", []string{"t"}) },
		"GetRecentTracks":  func() error { _, err := p.GetRecentTracks(ctx, "token"); return err },
		"SearchTracks":     func() error { _, err := p.SearchTracks(ctx, "q"); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, shared.ErrUnsupportedPlatform) {
				t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
			}
		})
	}

	t.Run("PlaylistURL", func(t *testing.T) {
		if got := p.PlaylistURL("pl.123"); got != "https://music.apple.com/playlist/pl.123" {
			t.Errorf("unexpected url %s", got)
		}
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewAppleMusicPlatform())

	p, err := r.Lookup(models.PlatformAppleMusic)
	if err != nil {
		t.Fatalf("expected apple music client, got %v", err)
	}
	if p.Name() != models.PlatformAppleMusic {
		t.Errorf("unexpected platform %s", p.Name())
	}

	if _, err := r.Lookup(models.PlatformSpotify); !errors.Is(err, shared.ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform for unregistered platform, got %v", err)
	}
}

func TestConvertTrack(t *testing.T) {
	tc := []struct {
		name    string
		from    models.Platform
		to      models.Platform
		want    string
		wantErr bool
	}{
		{name: "same platform", from: models.PlatformSpotify, to: models.PlatformSpotify, want: "abc"},
		{name: "spotify to apple", from: models.PlatformSpotify, to: models.PlatformAppleMusic, wantErr: true},
		{name: "apple to spotify", from: models.PlatformAppleMusic, to: models.PlatformSpotify, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertTrack("abc", tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrConversionUnsupported) {
					t.Errorf("expected ErrConversionUnsupported, got %v", err)
				}
				if got != "" {
					t.Errorf("expected no track id on failure, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ConvertTrack() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	err := error(&APIError{Platform: models.PlatformSpotify, StatusCode: 429, Body: "slow down"})

	if !errors.Is(err, shared.ErrAPIRequest) {
		t.Error("APIError should match ErrAPIRequest")
	}
	if StatusCode(err) != 429 {
		t.Errorf("expected 429, got %d", StatusCode(err))
	}
	if StatusCode(errors.New("other")) != 0 {
		t.Error("expected 0 for non-API errors")
	}
}

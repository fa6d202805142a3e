// package models defines the data model for the session and playlist pipeline
package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/shared"
)

// Platform names a streaming platform a user is linked to.
type Platform string

const (
	PlatformSpotify    Platform = "spotify"
	PlatformAppleMusic Platform = "apple_music"
)

// String returns the platform name as stored in the database.
func (p Platform) String() string { return string(p) }

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformSpotify, PlatformAppleMusic:
		return true
	default:
		return false
	}
}

// ParsePlatform converts a stored or user-provided name to a [Platform].
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, s)
	}
	return p, nil
}

// Model is implemented by every persisted entity.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// User is a registered account linked to exactly one platform.
type User struct {
	ID                 string
	Sequence           int
	FirstName          string
	PhoneNumber        string
	Platform           Platform
	PlatformUserID     string
	OnboardingComplete bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser creates a [User] with timestamps set to now.
func NewUser(firstName, phone string, platform Platform) *User {
	now := time.Now().UTC()
	return &User{
		FirstName:   firstName,
		PhoneNumber: phone,
		Platform:    platform,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (u *User) Validate() error {
	if u.FirstName == "" {
		return fmt.Errorf("%w: first name is required", shared.ErrInvalidInput)
	}
	if !u.Platform.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, u.Platform)
	}
	return nil
}

// Credential holds a user's OAuth tokens for one platform.
type Credential struct {
	UserID       string
	Platform     Platform
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token can no longer be used at now.
// A token expiring exactly at now is treated as expired.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

func (c *Credential) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: credential user id is required", shared.ErrInvalidInput)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrMissingCredentials)
	}
	if !c.Platform.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, c.Platform)
	}
	return nil
}

// Friendship is one directed edge of the symmetric friend graph.
type Friendship struct {
	UserID    string
	FriendID  string
	CreatedAt time.Time
}

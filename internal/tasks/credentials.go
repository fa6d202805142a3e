package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/metrics"
	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
)

// CredentialManager keeps access tokens usable, refreshing them when they expire.
//
// Expiry is checked on every call and never cached, so a token that expires mid-run is
// refreshed before the next platform call.
type CredentialManager struct {
	store     CredentialStore
	platforms *services.Registry
	now       Clock
	logger    *log.Logger
}

// NewCredentialManager creates a [CredentialManager]. A nil clock uses [time.Now].
func NewCredentialManager(store CredentialStore, platforms *services.Registry, now Clock, logger *log.Logger) *CredentialManager {
	if now == nil {
		now = time.Now
	}
	return &CredentialManager{store: store, platforms: platforms, now: now, logger: logger}
}

// Load returns the stored credential for the user's platform.
func (m *CredentialManager) Load(ctx context.Context, user *models.User) (*models.Credential, error) {
	return m.store.Get(ctx, user.ID, user.Platform)
}

// EnsureValid returns c unchanged while its access token is live. Otherwise it refreshes the
// token, persists the new tokens with a single write and returns the refreshed credential.
// The refresh token is kept when the platform does not rotate it.
//
// A refresh that yields no access token or no lifetime counts as a failure. On failure nothing
// is written and the error wraps [shared.ErrRefreshFailed].
func (m *CredentialManager) EnsureValid(ctx context.Context, user *models.User, c *models.Credential) (*models.Credential, error) {
	now := m.now()
	if !c.Expired(now) {
		return c, nil
	}

	if c.RefreshToken == "" {
		return nil, fmt.Errorf("%w: user %s: %w", shared.ErrRefreshFailed, user.ID, shared.ErrNoRefreshToken)
	}

	platform, err := m.platforms.Lookup(c.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %w", shared.ErrRefreshFailed, user.ID, err)
	}

	tokens, err := platform.RefreshTokens(ctx, c.RefreshToken)
	if err != nil {
		metrics.RecordRefresh(c.Platform.String(), false)
		if errors.Is(err, shared.ErrRefreshFailed) {
			return nil, fmt.Errorf("user %s: %w", user.ID, err)
		}
		return nil, fmt.Errorf("%w: user %s: %w", shared.ErrRefreshFailed, user.ID, err)
	}

	if tokens.AccessToken == "" || tokens.ExpiresIn <= 0 {
		metrics.RecordRefresh(c.Platform.String(), false)
		return nil, fmt.Errorf("%w: user %s: platform returned no usable access token (ttl %s)",
			shared.ErrRefreshFailed, user.ID, tokens.ExpiresIn)
	}

	refreshed := *c
	refreshed.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		refreshed.RefreshToken = tokens.RefreshToken
	}
	refreshed.ExpiresAt = now.Add(tokens.ExpiresIn).UTC()
	refreshed.UpdatedAt = now.UTC()

	if err := m.store.UpdateTokens(ctx, &refreshed); err != nil {
		metrics.RecordRefresh(c.Platform.String(), false)
		return nil, fmt.Errorf("%w: user %s: failed to save tokens: %w", shared.ErrRefreshFailed, user.ID, err)
	}

	metrics.RecordRefresh(c.Platform.String(), true)
	m.logger.Debug("refreshed access token", "user_id", user.ID, "platform", c.Platform, "expires_at", refreshed.ExpiresAt)
	return &refreshed, nil
}

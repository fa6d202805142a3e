package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

// CredentialRepository persists OAuth tokens per user and platform.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository]
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save inserts or replaces the user's credential for its platform.
func (r *CredentialRepository) Save(ctx context.Context, c *models.Credential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	c.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO credentials (user_id, platform, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, c.UserID, c.Platform.String(), c.AccessToken, c.RefreshToken, c.ExpiresAt.UTC(), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Get returns the credential for a user on a platform; a missing row yields [shared.ErrNotAuthenticated].
func (r *CredentialRepository) Get(ctx context.Context, userID string, platform models.Platform) (*models.Credential, error) {
	query := `
		SELECT user_id, platform, access_token, refresh_token, expires_at, updated_at
		FROM credentials
		WHERE user_id = ? AND platform = ?
	`

	var (
		c    models.Credential
		name string
	)
	err := r.db.QueryRowContext(ctx, query, userID, platform.String()).
		Scan(&c.UserID, &name, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s credential for user %s", shared.ErrNotAuthenticated, platform, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	c.Platform = models.Platform(name)
	return &c, nil
}

// UpdateTokens writes refreshed tokens with a single statement.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, c *models.Credential) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE user_id = ? AND platform = ?
	`

	result, err := r.db.ExecContext(ctx, query, c.AccessToken, c.RefreshToken, c.ExpiresAt.UTC(), c.UpdatedAt, c.UserID, c.Platform.String())
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no %s credential for user %s", shared.ErrNotAuthenticated, c.Platform, c.UserID)
	}
	return nil
}

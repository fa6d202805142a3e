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

const userColumns = `id, sequence, first_name, phone_number, platform, platform_user_id, onboarding_complete, created_at, updated_at`

// UserRepository persists [models.User] accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.ID = shared.GenerateID()
	user.Sequence = sequence

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.Sequence,
		user.FirstName,
		user.PhoneNumber,
		user.Platform.String(),
		user.PlatformUserID,
		user.OnboardingComplete,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	return user, err
}

// ListEligible returns every user who has completed onboarding, in sequence order.
func (r *UserRepository) ListEligible(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE onboarding_complete = 1 ORDER BY sequence`
	return r.list(ctx, query)
}

// List returns every user in sequence order.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY sequence`)
}

// CompleteOnboarding marks the user eligible for sessions.
func (r *UserRepository) CompleteOnboarding(ctx context.Context, id string) error {
	query := `UPDATE users SET onboarding_complete = 1, updated_at = ? WHERE id = ?`
	return r.exec(ctx, id, query, time.Now().UTC(), id)
}

// SetPlatformUserID records the account id the user's platform knows them by.
func (r *UserRepository) SetPlatformUserID(ctx context.Context, id, platformUserID string) error {
	query := `UPDATE users SET platform_user_id = ?, updated_at = ? WHERE id = ?`
	return r.exec(ctx, id, query, platformUserID, time.Now().UTC(), id)
}

func (r *UserRepository) exec(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	return nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// scan reads a single user row
func (r *UserRepository) scan(row scanner) (*models.User, error) {
	var (
		user     models.User
		platform string
	)

	err := row.Scan(
		&user.ID,
		&user.Sequence,
		&user.FirstName,
		&user.PhoneNumber,
		&platform,
		&user.PlatformUserID,
		&user.OnboardingComplete,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Platform = models.Platform(platform)
	return &user, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/shared"
)

// FriendRepository reads and writes the friend graph.
//
// Friendships are symmetric and stored as one row per direction.
type FriendRepository struct {
	db *sql.DB
}

// NewFriendRepository creates a new [FriendRepository]
func NewFriendRepository(db *sql.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// AddFriendship links two users in both directions within one transaction.
// Re-adding an existing friendship is a no-op.
func (r *FriendRepository) AddFriendship(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" || userID == friendID {
		return fmt.Errorf("%w: friendship requires two distinct users", shared.ErrInvalidInput)
	}

	now := time.Now().UTC()
	query := `INSERT OR IGNORE INTO friends (user_id, friend_id, created_at) VALUES (?, ?, ?)`

	return inTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, userID, friendID, now); err != nil {
			return fmt.Errorf("failed to insert friendship: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, friendID, userID, now); err != nil {
			return fmt.Errorf("failed to insert friendship: %w", err)
		}
		return nil
	})
}

// FriendsOf returns the ids of a user's friends, oldest friendship first.
// A user without friends yields an empty slice.
func (r *FriendRepository) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT friend_id FROM friends WHERE user_id = ? ORDER BY created_at, rowid`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	friends := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return friends, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/echo/internal/models"
)

// TrackPlayRepository stores listening history.
type TrackPlayRepository struct {
	db *sql.DB
}

// NewTrackPlayRepository creates a new [TrackPlayRepository]
func NewTrackPlayRepository(db *sql.DB) *TrackPlayRepository {
	return &TrackPlayRepository{db: db}
}

// InsertBatch stores plays in one transaction, skipping any already recorded for the same
// user, track and play time. It returns the number of new rows.
func (r *TrackPlayRepository) InsertBatch(ctx context.Context, plays []models.TrackPlay) (int, error) {
	if len(plays) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO track_plays (user_id, platform, track_id, track_name, artists, album_image_url, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, track_id, played_at) DO NOTHING
	`

	inserted := 0
	err := inTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare play insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range plays {
			result, err := stmt.ExecContext(ctx, p.UserID, p.Platform.String(), p.TrackID, p.TrackName, p.Artists, p.AlbumImageURL, p.PlayedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert play of %s: %w", p.TrackID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get affected rows: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListByUser returns a user's plays, most recent first.
func (r *TrackPlayRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.TrackPlay, error) {
	query := `
		SELECT user_id, platform, track_id, track_name, artists, album_image_url, played_at
		FROM track_plays
		WHERE user_id = ?
		ORDER BY played_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []models.TrackPlay
	for rows.Next() {
		var (
			p        models.TrackPlay
			platform string
		)
		if err := rows.Scan(&p.UserID, &platform, &p.TrackID, &p.TrackName, &p.Artists, &p.AlbumImageURL, &p.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		p.Platform = models.Platform(platform)
		plays = append(plays, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return plays, nil
}

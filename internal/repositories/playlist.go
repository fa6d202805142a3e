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

// PlaylistRepository persists generated [models.Playlist] rows.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// InsertBatch writes every playlist in one transaction and returns the generated row ids keyed by
// platform playlist id. Any failure rolls back the whole batch.
func (r *PlaylistRepository) InsertBatch(ctx context.Context, playlists []*models.Playlist) (map[string]string, error) {
	ids := make(map[string]string, len(playlists))
	if len(playlists) == 0 {
		return ids, nil
	}

	for _, p := range playlists {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	query := `
		INSERT INTO playlists (id, user_id, platform, session_id, platform_playlist_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	err := inTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare playlist insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range playlists {
			id := shared.GenerateID()
			if _, err := stmt.ExecContext(ctx, id, p.UserID, p.Platform.String(), nullString(p.SessionID), p.PlatformPlaylistID, now); err != nil {
				return fmt.Errorf("failed to insert playlist %s: %w", p.PlatformPlaylistID, err)
			}
			ids[p.PlatformPlaylistID] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range playlists {
		p.ID = ids[p.PlatformPlaylistID]
		p.CreatedAt = now
	}
	return ids, nil
}

// GetByPlatformID retrieves a playlist by the id its platform assigned.
func (r *PlaylistRepository) GetByPlatformID(ctx context.Context, platformPlaylistID string) (*models.Playlist, error) {
	query := `
		SELECT id, user_id, platform, session_id, platform_playlist_id, created_at
		FROM playlists
		WHERE platform_playlist_id = ?
	`
	p, err := r.scan(r.db.QueryRowContext(ctx, query, platformPlaylistID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, platformPlaylistID)
	}
	return p, err
}

// ListBySession returns the playlists generated for a session.
func (r *PlaylistRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Playlist, error) {
	query := `
		SELECT id, user_id, platform, session_id, platform_playlist_id, created_at
		FROM playlists
		WHERE session_id = ?
		ORDER BY rowid
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

func (r *PlaylistRepository) scan(row scanner) (*models.Playlist, error) {
	var (
		p         models.Playlist
		platform  string
		sessionID sql.NullString
	)

	err := row.Scan(&p.ID, &p.UserID, &platform, &sessionID, &p.PlatformPlaylistID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Platform = models.Platform(platform)
	p.SessionID = sessionID.String
	return &p, nil
}

// PlaylistTrackRepository persists playlist contents.
type PlaylistTrackRepository struct {
	db *sql.DB
}

// NewPlaylistTrackRepository creates a new [PlaylistTrackRepository]
func NewPlaylistTrackRepository(db *sql.DB) *PlaylistTrackRepository {
	return &PlaylistTrackRepository{db: db}
}

// InsertBatch writes every track in one transaction. Tracks must already reference persisted playlists.
func (r *PlaylistTrackRepository) InsertBatch(ctx context.Context, tracks []models.PlaylistTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	query := `
		INSERT INTO playlist_tracks (id, playlist_id, position, track_id, submitted_by_user_id)
		VALUES (?, ?, ?, ?, ?)
	`

	return inTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare playlist track insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range tracks {
			if t.PlaylistID == "" || t.TrackID == "" {
				return fmt.Errorf("%w: playlist track requires playlist and track ids", shared.ErrInvalidInput)
			}
			if _, err := stmt.ExecContext(ctx, shared.GenerateID(), t.PlaylistID, t.Position, t.TrackID, t.SubmittedBy); err != nil {
				return fmt.Errorf("failed to insert track %s: %w", t.TrackID, err)
			}
		}
		return nil
	})
}

// ListByPlaylist returns a playlist's tracks in position order.
func (r *PlaylistTrackRepository) ListByPlaylist(ctx context.Context, playlistID string) ([]models.PlaylistTrack, error) {
	query := `
		SELECT id, playlist_id, position, track_id, submitted_by_user_id
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.PlaylistTrack
	for rows.Next() {
		var t models.PlaylistTrack
		if err := rows.Scan(&t.ID, &t.PlaylistID, &t.Position, &t.TrackID, &t.SubmittedBy); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

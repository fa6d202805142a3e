package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

// TokenRepository persists submission tokens and serves the submissions made with them.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository]
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// InsertBatch writes every token in one transaction; any failure leaves none of them stored.
func (r *TokenRepository) InsertBatch(ctx context.Context, tokens []models.SubmissionToken) error {
	if len(tokens) == 0 {
		return nil
	}

	for i := range tokens {
		if err := tokens[i].Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	query := `INSERT INTO submission_tokens (token, user_id, session_id, platform, created_at) VALUES (?, ?, ?, ?, ?)`

	return inTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare token insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range tokens {
			if _, err := stmt.ExecContext(ctx, t.Token, t.UserID, t.SessionID, t.Platform.String(), t.CreatedAt.UTC()); err != nil {
				return fmt.Errorf("failed to insert token for user %s: %w", t.UserID, err)
			}
		}
		return nil
	})
}

// Get retrieves a token by its value.
func (r *TokenRepository) Get(ctx context.Context, token string) (*models.SubmissionToken, error) {
	query := `
		SELECT token, user_id, session_id, platform, track_id, submitted_at, created_at
		FROM submission_tokens
		WHERE token = ?
	`
	t, err := r.scan(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTokenNotFound
	}
	return t, err
}

// ForSession returns every token issued for a session.
func (r *TokenRepository) ForSession(ctx context.Context, sessionID string) ([]*models.SubmissionToken, error) {
	query := `
		SELECT token, user_id, session_id, platform, track_id, submitted_at, created_at
		FROM submission_tokens
		WHERE session_id = ?
		ORDER BY rowid
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.SubmissionToken
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tokens, nil
}

// Submit records a track against a token. A token can be spent once; later calls fail with
// [shared.ErrTokenAlreadyUsed] and leave the first submission intact.
func (r *TokenRepository) Submit(ctx context.Context, token, trackID string, at time.Time) error {
	if trackID == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	query := `UPDATE submission_tokens SET track_id = ?, submitted_at = ? WHERE token = ? AND track_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, trackID, at.UTC(), token)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	if _, err := r.Get(ctx, token); err != nil {
		return err
	}
	return shared.ErrTokenAlreadyUsed
}

// SessionSubmissions returns the submissions made during a session, keyed by submitting user.
func (r *TokenRepository) SessionSubmissions(ctx context.Context, sessionID string) (map[string]models.Submission, error) {
	query := `
		SELECT user_id, session_id, track_id, platform, submitted_at
		FROM submission_tokens
		WHERE session_id = ? AND track_id IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	submissions := make(map[string]models.Submission)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions[s.UserID] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return submissions, nil
}

// RecentSubmissions returns up to limit submissions on platform made by any of the given users
// across all sessions, newest first.
func (r *TokenRepository) RecentSubmissions(ctx context.Context, userIDs []string, platform models.Platform, limit int) ([]models.Submission, error) {
	if len(userIDs) == 0 || limit <= 0 {
		return []models.Submission{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(userIDs)), ", ")
	query := fmt.Sprintf(`
		SELECT user_id, session_id, track_id, platform, submitted_at
		FROM submission_tokens
		WHERE user_id IN (%s) AND platform = ? AND track_id IS NOT NULL
		ORDER BY submitted_at DESC, rowid DESC
		LIMIT ?
	`, placeholders)

	args := make([]any, 0, len(userIDs)+2)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, platform.String(), limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent submissions: %w", err)
	}
	defer rows.Close()

	submissions := []models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return submissions, nil
}

func scanSubmission(row scanner) (models.Submission, error) {
	var (
		s           models.Submission
		platform    string
		submittedAt sql.NullTime
	)
	if err := row.Scan(&s.UserID, &s.SessionID, &s.TrackID, &platform, &submittedAt); err != nil {
		return s, fmt.Errorf("failed to scan submission: %w", err)
	}
	s.Platform = models.Platform(platform)
	s.SubmittedAt = submittedAt.Time
	return s, nil
}

func (r *TokenRepository) scan(row scanner) (*models.SubmissionToken, error) {
	var (
		t           models.SubmissionToken
		platform    string
		trackID     sql.NullString
		submittedAt sql.NullTime
	)

	err := row.Scan(&t.Token, &t.UserID, &t.SessionID, &platform, &trackID, &submittedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	t.Platform = models.Platform(platform)
	t.TrackID = trackID.String
	if submittedAt.Valid {
		t.SubmittedAt = &submittedAt.Time
	}
	return &t, nil
}

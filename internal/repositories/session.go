package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

// SessionRepository persists [models.Session] windows.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository]
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session with generated ID and sequence.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `INSERT INTO sessions (id, sequence, start_at, end_at, created_at) VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, id, sequence, session.Start.UTC(), session.End.UTC(), session.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.ID = id
	session.Sequence = sequence
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, sequence, start_at, end_at, created_at FROM sessions WHERE id = ?`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// Latest returns the session with the most recent start.
func (r *SessionRepository) Latest(ctx context.Context) (*models.Session, error) {
	query := `SELECT id, sequence, start_at, end_at, created_at FROM sessions ORDER BY start_at DESC, sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRowContext(ctx, query))
}

func (r *SessionRepository) scan(row scanner) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Sequence, &s.Start, &s.End, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/metrics"
	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

// SessionResult describes a newly opened session.
type SessionResult struct {
	Session *models.Session
	Tokens  []models.SubmissionToken
}

// SessionScheduler opens sharing sessions and issues their submission tokens.
type SessionScheduler struct {
	sessions SessionStore
	users    UserStore
	tokens   TokenStore
	window   shared.SessionConfig
	now      Clock
	newToken func() (string, error)
	logger   *log.Logger
}

// NewSessionScheduler creates a [SessionScheduler] for the configured daily window.
func NewSessionScheduler(sessions SessionStore, users UserStore, tokens TokenStore, window shared.SessionConfig, now Clock, logger *log.Logger) *SessionScheduler {
	if now == nil {
		now = time.Now
	}
	return &SessionScheduler{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		window:   window,
		now:      now,
		newToken: shared.GenerateToken,
		logger:   logger,
	}
}

// Window returns the session bounds for the day containing t in the configured timezone.
func (s *SessionScheduler) Window(t time.Time) (time.Time, time.Time) {
	loc := s.window.Location()
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.Add(time.Duration(s.window.StartHour) * time.Hour), day.Add(time.Duration(s.window.EndHour) * time.Hour)
}

// Open inserts a session, then issues one token per onboarded user in a single batch.
// Failure to insert either is returned as is; the caller's job runtime reports it.
func (s *SessionScheduler) Open(ctx context.Context, progress chan<- ProgressUpdate) (*SessionResult, error) {
	start, end := s.Window(s.now())
	session := models.NewSession(start, end)

	sendProgress(progress, openSessionUpdate(start.Format(time.Kitchen), end.Format(time.Kitchen)))
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	users, err := s.users.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible users: %w", err)
	}

	tokens, err := s.issue(session, users)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.InsertBatch(ctx, tokens); err != nil {
		return nil, fmt.Errorf("failed to insert submission tokens: %w", err)
	}

	metrics.RecordTokensIssued(len(tokens))
	sendProgress(progress, issueTokensUpdate(len(tokens)))
	s.logger.Info("session opened", "session_id", session.ID, "start", session.Start, "end", session.End, "tokens", len(tokens))
	return &SessionResult{Session: session, Tokens: tokens}, nil
}

func (s *SessionScheduler) issue(session *models.Session, users []*models.User) ([]models.SubmissionToken, error) {
	tokens := make([]models.SubmissionToken, 0, len(users))
	issued := make(map[string]struct{}, len(users))

	for _, u := range users {
		var token string
		for {
			t, err := s.newToken()
			if err != nil {
				return nil, fmt.Errorf("failed to generate token for %s: %w", u.ID, err)
			}
			if _, dup := issued[t]; !dup {
				token = t
				break
			}
		}
		issued[token] = struct{}{}

		tokens = append(tokens, models.SubmissionToken{
			Token:     token,
			UserID:    u.ID,
			SessionID: session.ID,
			Platform:  u.Platform,
			CreatedAt: session.CreatedAt,
		})
	}
	return tokens, nil
}

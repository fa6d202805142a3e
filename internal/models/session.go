package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/echo/internal/shared"
)

// Session is a time-boxed sharing window.
type Session struct {
	ID        string
	Sequence  int
	Start     time.Time
	End       time.Time
	CreatedAt time.Time
}

// NewSession creates a [Session] covering [start, end).
func NewSession(start, end time.Time) *Session {
	return &Session{Start: start.UTC(), End: end.UTC(), CreatedAt: time.Now().UTC()}
}

func (s *Session) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("%w: session end %s is not after start %s", shared.ErrInvalidInput, s.End, s.Start)
	}
	return nil
}

// Closed reports whether the session window has ended at now.
func (s *Session) Closed(now time.Time) bool {
	return !now.Before(s.End)
}

// SubmissionToken is the one-time credential a user spends to submit a track to a session.
// TrackID is empty until the token is used.
type SubmissionToken struct {
	Token       string
	UserID      string
	SessionID   string
	Platform    Platform
	TrackID     string
	SubmittedAt *time.Time
	CreatedAt   time.Time
}

// Used reports whether a track has been submitted with this token.
func (t *SubmissionToken) Used() bool {
	return t.TrackID != ""
}

func (t *SubmissionToken) Validate() error {
	if t.Token == "" || t.UserID == "" || t.SessionID == "" {
		return fmt.Errorf("%w: token, user and session are required", shared.ErrInvalidInput)
	}
	if !t.Platform.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, t.Platform)
	}
	return nil
}

// Submission is a song a user shared, as seen by the aggregator.
type Submission struct {
	UserID      string
	SessionID   string
	TrackID     string
	Platform    Platform
	SubmittedAt time.Time
}

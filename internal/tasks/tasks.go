package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/notify"
)

// ErrUseFallback is returned by the aggregator when a user has no friends or their
// friends have shared nothing. It is a signal, not a failure.
var ErrUseFallback = errors.New("no friend submissions, use fallback playlist")

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// UserStore reads users and their onboarding state.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	ListEligible(ctx context.Context) ([]*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	CompleteOnboarding(ctx context.Context, id string) error
}

// CredentialStore reads and refreshes stored platform credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID string, platform models.Platform) (*models.Credential, error)
	UpdateTokens(ctx context.Context, c *models.Credential) error
}

// FriendGraph lists a user's friends in a stable order.
type FriendGraph interface {
	FriendsOf(ctx context.Context, userID string) ([]string, error)
}

// SessionStore creates and finds sharing sessions.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Latest(ctx context.Context) (*models.Session, error)
}

// TokenStore issues submission tokens and reads what was submitted with them.
type TokenStore interface {
	InsertBatch(ctx context.Context, tokens []models.SubmissionToken) error
	SessionSubmissions(ctx context.Context, sessionID string) (map[string]models.Submission, error)
	RecentSubmissions(ctx context.Context, userIDs []string, platform models.Platform, limit int) ([]models.Submission, error)
}

// PlaylistStore persists playlists in one batch and returns internal ids keyed by platform playlist id.
type PlaylistStore interface {
	InsertBatch(ctx context.Context, playlists []*models.Playlist) (map[string]string, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Playlist, error)
}

// PlaylistTrackStore persists playlist entries in one batch.
type PlaylistTrackStore interface {
	InsertBatch(ctx context.Context, tracks []models.PlaylistTrack) error
}

// PlayStore stores listening history, ignoring plays already recorded.
type PlayStore interface {
	InsertBatch(ctx context.Context, plays []models.TrackPlay) (int, error)
}

// Notifier is implemented by [notify.LogNotifier] and any real delivery channel.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Candidate is one track proposed for a user's playlist, credited to the friend who shared it.
type Candidate struct {
	TrackID     string `json:"track_id"`
	SubmittedBy string `json:"submitted_by"`
}

// Status is the outcome of one user's pass through a run.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusFallback
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the per-user record of a playlist run.
type Result struct {
	UserID             string          `json:"user_id"`
	FirstName          string          `json:"first_name"`
	PhoneNumber        string          `json:"-"`
	Platform           models.Platform `json:"platform"`
	Status             Status          `json:"status"`
	Reason             string          `json:"reason,omitempty"` // Failure reason, empty unless Status is StatusFailed
	PlatformPlaylistID string          `json:"platform_playlist_id,omitempty"`
	PlaylistURL        string          `json:"playlist_url,omitempty"`
	Tracks             []Candidate     `json:"tracks"`
	Persisted          bool            `json:"persisted"`
	Notified           bool            `json:"notified"`
}

// RunReport collects every per-user result of a run.
type RunReport struct {
	SessionID  string    `json:"session_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Count returns the number of results with the given status.
func (r *RunReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Result returns the result for a user.
func (r *RunReport) Result(userID string) (Result, bool) {
	for _, res := range r.Results {
		if res.UserID == userID {
			return res, true
		}
	}
	return Result{}, false
}

// Notified returns the ids of users that were notified, in run order.
func (r *RunReport) Notified() []string {
	ids := []string{}
	for _, res := range r.Results {
		if res.Notified {
			ids = append(ids, res.UserID)
		}
	}
	return ids
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

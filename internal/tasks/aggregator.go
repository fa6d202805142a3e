package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/services"
)

const (
	DefaultSongsPerPlaylist = 10
	DefaultCatchupLimit     = 15
)

// Aggregator turns friends' submissions into playlist candidates.
type Aggregator struct {
	friends      FriendGraph
	tokens       TokenStore
	limit        int
	catchupLimit int
	logger       *log.Logger
}

// NewAggregator creates an [Aggregator]. Non-positive limits use the defaults.
func NewAggregator(friends FriendGraph, tokens TokenStore, limit, catchupLimit int, logger *log.Logger) *Aggregator {
	if limit <= 0 {
		limit = DefaultSongsPerPlaylist
	}
	if catchupLimit <= 0 {
		catchupLimit = DefaultCatchupLimit
	}
	return &Aggregator{friends: friends, tokens: tokens, limit: limit, catchupLimit: catchupLimit, logger: logger}
}

// FriendsOf returns the user's friends in accessor order.
func (a *Aggregator) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	friends, err := a.friends.FriendsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load friends of %s: %w", userID, err)
	}
	return friends, nil
}

// SessionCapped walks friends in order and takes each friend's submission for the session,
// skipping friends who did not submit and tracks already taken. It stops once the playlist
// limit is reached.
//
// Submissions from another platform need conversion, which is unsupported, so they are
// skipped rather than passed through with a foreign id.
func (a *Aggregator) SessionCapped(target models.Platform, friends []string, submissions map[string]models.Submission) []Candidate {
	candidates := make([]Candidate, 0, a.limit)
	seen := make(map[string]struct{}, a.limit)

	for _, friendID := range friends {
		if len(candidates) >= a.limit {
			break
		}

		sub, ok := submissions[friendID]
		if !ok || sub.TrackID == "" {
			continue
		}

		trackID, ok := a.convert(sub, target)
		if !ok {
			continue
		}

		if _, dup := seen[trackID]; dup {
			continue
		}
		seen[trackID] = struct{}{}
		candidates = append(candidates, Candidate{TrackID: trackID, SubmittedBy: friendID})
	}

	return candidates
}

// RecencyCatchup returns the newest submissions across all of a user's friends and sessions,
// newest first. A friend may appear more than once and repeated tracks are kept.
// Only submissions on the user's platform are considered, so foreign tracks never take
// a slot under the limit.
//
// It returns [ErrUseFallback] when the user has no friends or none of them has submitted.
func (a *Aggregator) RecencyCatchup(ctx context.Context, user *models.User) ([]Candidate, error) {
	friends, err := a.FriendsOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		return nil, ErrUseFallback
	}

	recent, err := a.tokens.RecentSubmissions(ctx, friends, user.Platform, a.catchupLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent submissions: %w", err)
	}

	candidates := make([]Candidate, 0, len(recent))
	for _, sub := range recent {
		trackID, ok := a.convert(sub, user.Platform)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{TrackID: trackID, SubmittedBy: sub.UserID})
	}

	if len(candidates) == 0 {
		return nil, ErrUseFallback
	}
	return candidates, nil
}

func (a *Aggregator) convert(sub models.Submission, target models.Platform) (string, bool) {
	trackID, err := services.ConvertTrack(sub.TrackID, sub.Platform, target)
	if err != nil {
		a.logger.Warn("skipping submission", "friend_id", sub.UserID, "track_id", sub.TrackID, "error", err)
		return "", false
	}
	return trackID, true
}

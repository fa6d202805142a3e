package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/services"
)

// PlaysResult is the outcome of collecting one user's listening history.
type PlaysResult struct {
	UserID  string
	Fetched int
	Added   int
	Err     error
}

// PlaysCollector copies users' recently played tracks into the datastore.
type PlaysCollector struct {
	users       UserStore
	plays       PlayStore
	credentials *CredentialManager
	platforms   *services.Registry
	logger      *log.Logger
}

// NewPlaysCollector creates a [PlaysCollector].
func NewPlaysCollector(users UserStore, plays PlayStore, credentials *CredentialManager, platforms *services.Registry, logger *log.Logger) *PlaysCollector {
	return &PlaysCollector{users: users, plays: plays, credentials: credentials, platforms: platforms, logger: logger}
}

// Collect fetches recent plays for every onboarded user. A user whose fetch fails is
// reported and skipped; plays already stored are ignored.
func (c *PlaysCollector) Collect(ctx context.Context, progress chan<- ProgressUpdate) ([]PlaysResult, error) {
	users, err := c.users.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	results := make([]PlaysResult, 0, len(users))
	for i, u := range users {
		res := c.collectUser(ctx, u)
		if res.Err != nil {
			c.logger.Error("failed to collect plays", "user_id", u.ID, "error", res.Err)
		}
		results = append(results, res)
		sendProgress(progress, collectPlaysUpdate(i+1, len(users), u.ID, res.Added))
	}
	return results, nil
}

func (c *PlaysCollector) collectUser(ctx context.Context, u *models.User) PlaysResult {
	res := PlaysResult{UserID: u.ID}

	platform, err := c.platforms.Lookup(u.Platform)
	if err != nil {
		res.Err = err
		return res
	}

	cred, err := c.credentials.Load(ctx, u)
	if err != nil {
		res.Err = err
		return res
	}
	if cred, err = c.credentials.EnsureValid(ctx, u, cred); err != nil {
		res.Err = err
		return res
	}

	tracks, err := platform.GetRecentTracks(ctx, cred.AccessToken)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fetched = len(tracks)

	plays := make([]models.TrackPlay, 0, len(tracks))
	for _, t := range tracks {
		plays = append(plays, models.TrackPlay{
			UserID:        u.ID,
			Platform:      u.Platform,
			TrackID:       t.ID,
			TrackName:     t.Name,
			Artists:       t.Artists,
			AlbumImageURL: t.AlbumImageURL,
			PlayedAt:      t.PlayedAt,
		})
	}

	if res.Added, err = c.plays.InsertBatch(ctx, plays); err != nil {
		res.Err = fmt.Errorf("failed to store plays: %w", err)
	}
	return res
}

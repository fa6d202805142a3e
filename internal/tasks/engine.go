package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/echo/internal/metrics"
	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/notify"
	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
)

// Deps holds the stores and clients a [PlaylistEngine] works against.
type Deps struct {
	Users          UserStore
	Sessions       SessionStore
	Tokens         TokenStore
	Playlists      PlaylistStore
	PlaylistTracks PlaylistTrackStore
	Aggregator     *Aggregator
	Credentials    *CredentialManager
	Platforms      *services.Registry
	Notifier       Notifier
}

// EngineOptions tunes a playlist run.
type EngineOptions struct {
	Workers            int            // Users processed concurrently (default: 1)
	FallbackPlaylistID string         // Playlist offered to users with nothing to aggregate
	Location           *time.Location // Timezone used for playlist names (default: UTC)
	Now                Clock
}

// PlaylistEngine builds and delivers per-user playlists.
type PlaylistEngine struct {
	Deps
	opts   EngineOptions
	logger *log.Logger
}

// NewPlaylistEngine creates a [PlaylistEngine].
func NewPlaylistEngine(d Deps, opts EngineOptions, logger *log.Logger) *PlaylistEngine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PlaylistEngine{Deps: d, opts: opts, logger: logger}
}

// Generate builds playlists for everyone who submitted to the most recent session.
//
// Every user is attempted before anything is written. Per-user problems are recorded in the
// returned report. A datastore failure while saving playlists is returned wrapped in
// [shared.ErrPersistence] along with the report built so far; nobody is notified in that case.
// Users who already have a playlist for the session are not attempted again.
func (e *PlaylistEngine) Generate(ctx context.Context, progress chan<- ProgressUpdate) (*RunReport, error) {
	report := &RunReport{StartedAt: e.opts.Now().UTC()}

	session, err := e.Sessions.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !session.Closed(e.opts.Now()) {
		return nil, fmt.Errorf("%w: session %s ends at %s", shared.ErrSessionOpen, session.ID, session.End.Format(time.RFC3339))
	}
	report.SessionID = session.ID

	users, submissions, err := e.loadSubmitters(ctx, session)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, loadUsersUpdate(len(users), session.ID))
	if len(users) == 0 {
		report.Results = []Result{}
		report.FinishedAt = e.opts.Now().UTC()
		e.logger.Info("no playlists left to build", "session_id", session.ID)
		return report, nil
	}

	date := session.Start.In(e.opts.Location).Format("01/02")
	report.Results = e.buildAll(ctx, progress, users, func(ctx context.Context, u *models.User) Result {
		return e.buildForSession(ctx, u, date, submissions)
	})

	if err := e.persist(ctx, progress, report, session.ID); err != nil {
		report.FinishedAt = e.opts.Now().UTC()
		return report, err
	}

	e.notifyAll(ctx, progress, report)
	report.FinishedAt = e.opts.Now().UTC()

	e.logger.Info("playlist run finished",
		"session_id", session.ID,
		"succeeded", report.Count(StatusSucceeded),
		"fallback", report.Count(StatusFallback),
		"failed", report.Count(StatusFailed),
	)
	return report, nil
}

// Onboard marks a user as onboarded and gives them a catch-up playlist of their friends'
// most recent submissions, or the fallback playlist when there is nothing to share.
func (e *PlaylistEngine) Onboard(ctx context.Context, userID string) (*RunReport, error) {
	report := &RunReport{StartedAt: e.opts.Now().UTC()}

	user, err := e.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := e.Users.CompleteOnboarding(ctx, user.ID); err != nil {
		return nil, err
	}

	spec := services.PlaylistSpec{
		Name:        fmt.Sprintf("%s's echo", user.FirstName),
		Description: "catch up on the songs your friends have been sharing",
	}

	res := newResult(user)
	candidates, err := e.Aggregator.RecencyCatchup(ctx, user)
	switch {
	case errors.Is(err, ErrUseFallback):
		res = e.fallback(res)
	case err != nil:
		res = e.fail(res, err)
	default:
		res = e.deliver(ctx, user, res, spec, candidates)
	}
	metrics.RecordUserResult(res.Status.String())
	report.Results = []Result{res}

	if err := e.persist(ctx, nil, report, ""); err != nil {
		report.FinishedAt = e.opts.Now().UTC()
		return report, err
	}

	e.notifyAll(ctx, nil, report)
	report.FinishedAt = e.opts.Now().UTC()
	return report, nil
}

// loadSubmitters returns the users who submitted a track to the session, in user order.
// Users who already have a playlist for the session are left out, so a repeated run
// makes no platform calls for them. Their submissions still feed their friends' playlists.
func (e *PlaylistEngine) loadSubmitters(ctx context.Context, session *models.Session) ([]*models.User, map[string]models.Submission, error) {
	submissions, err := e.Tokens.SessionSubmissions(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	existing, err := e.Playlists.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load existing playlists: %w", err)
	}
	covered := make(map[string]bool, len(existing))
	for _, p := range existing {
		covered[p.UserID] = true
	}
	if len(covered) > 0 {
		e.logger.Warn("skipping users with a playlist for this session", "session_id", session.ID, "skipped", len(covered))
	}

	all, err := e.Users.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*models.User, 0, len(submissions))
	for _, u := range all {
		if _, ok := submissions[u.ID]; ok && !covered[u.ID] {
			users = append(users, u)
		}
	}
	return users, submissions, nil
}

// buildAll runs build for every user on a bounded worker pool and returns results in user order.
// It returns only after every attempt has resolved.
func (e *PlaylistEngine) buildAll(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	users []*models.User,
	build func(context.Context, *models.User) Result,
) []Result {
	results := make([]Result, len(users))
	if len(users) == 0 {
		return results
	}

	workers := min(e.opts.Workers, len(users))
	jobs := make(chan int, len(users))
	done := make(chan int, len(users))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = build(ctx, users[i])
				done <- i
			}
		}()
	}

	for i := range users {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for i := range done {
		completed++
		metrics.RecordUserResult(results[i].Status.String())
		sendProgress(progress, userResultUpdate(completed, len(users), results[i]))
	}
	return results
}

func (e *PlaylistEngine) buildForSession(ctx context.Context, user *models.User, date string, submissions map[string]models.Submission) Result {
	res := newResult(user)

	friends, err := e.Aggregator.FriendsOf(ctx, user.ID)
	if err != nil {
		return e.fail(res, err)
	}

	candidates := e.Aggregator.SessionCapped(user.Platform, friends, submissions)
	if len(candidates) == 0 {
		return e.fallback(res)
	}

	spec := services.PlaylistSpec{
		Name:        fmt.Sprintf("%s's echo %s", user.FirstName, date),
		Description: fmt.Sprintf("here are the songs your friends shared for the %s echo", date),
	}
	return e.deliver(ctx, user, res, spec, candidates)
}

// deliver creates the playlist on the user's platform and fills it. The credential is
// checked before each platform call.
func (e *PlaylistEngine) deliver(ctx context.Context, user *models.User, res Result, spec services.PlaylistSpec, candidates []Candidate) Result {
	platform, err := e.Platforms.Lookup(user.Platform)
	if err != nil {
		return e.fail(res, err)
	}

	cred, err := e.Credentials.Load(ctx, user)
	if err != nil {
		return e.fail(res, err)
	}

	if cred, err = e.Credentials.EnsureValid(ctx, user, cred); err != nil {
		return e.fail(res, err)
	}

	platformUserID := user.PlatformUserID
	if platformUserID == "" {
		if platformUserID, err = platform.GetUserID(ctx, cred.AccessToken); err != nil {
			return e.fail(res, err)
		}
		if cred, err = e.Credentials.EnsureValid(ctx, user, cred); err != nil {
			return e.fail(res, err)
		}
	}

	playlistID, err := platform.CreatePlaylist(ctx, cred.AccessToken, platformUserID, spec)
	if err != nil {
		return e.fail(res, err)
	}

	if cred, err = e.Credentials.EnsureValid(ctx, user, cred); err != nil {
		return e.fail(res, err)
	}

	trackIDs := make([]string, len(candidates))
	for i, c := range candidates {
		trackIDs[i] = c.TrackID
	}
	if err := platform.PopulatePlaylist(ctx, cred.AccessToken, playlistID, trackIDs); err != nil {
		return e.fail(res, err)
	}

	res.Status = StatusSucceeded
	res.PlatformPlaylistID = playlistID
	res.PlaylistURL = platform.PlaylistURL(playlistID)
	res.Tracks = candidates
	return res
}

// persist writes playlists for succeeded results in one batch, then their tracks in a second
// batch resolved through the ids the first batch returned.
func (e *PlaylistEngine) persist(ctx context.Context, progress chan<- ProgressUpdate, report *RunReport, sessionID string) error {
	now := e.opts.Now().UTC()

	var playlists []*models.Playlist
	for _, res := range report.Results {
		if res.Status != StatusSucceeded {
			continue
		}
		playlists = append(playlists, &models.Playlist{
			UserID:             res.UserID,
			Platform:           res.Platform,
			SessionID:          sessionID,
			PlatformPlaylistID: res.PlatformPlaylistID,
			CreatedAt:          now,
		})
	}
	if len(playlists) == 0 {
		return nil
	}

	ids, err := e.Playlists.InsertBatch(ctx, playlists)
	if err != nil {
		return fmt.Errorf("%w: playlists: %w", shared.ErrPersistence, err)
	}

	var tracks []models.PlaylistTrack
	for _, res := range report.Results {
		if res.Status != StatusSucceeded {
			continue
		}
		playlistID, ok := ids[res.PlatformPlaylistID]
		if !ok {
			return fmt.Errorf("%w: no id returned for playlist %s", shared.ErrPersistence, res.PlatformPlaylistID)
		}
		for pos, c := range res.Tracks {
			tracks = append(tracks, models.PlaylistTrack{
				PlaylistID:  playlistID,
				Position:    pos,
				TrackID:     c.TrackID,
				SubmittedBy: c.SubmittedBy,
			})
		}
	}

	if err := e.PlaylistTracks.InsertBatch(ctx, tracks); err != nil {
		return fmt.Errorf("%w: playlist tracks: %w", shared.ErrPersistence, err)
	}

	for i := range report.Results {
		if report.Results[i].Status == StatusSucceeded {
			report.Results[i].Persisted = true
		}
	}
	sendProgress(progress, persistUpdate(len(playlists), len(tracks)))
	return nil
}

// notifyAll notifies users whose playlist was saved, and fallback users when a fallback
// playlist is configured. Delivery errors are logged and leave Notified false.
func (e *PlaylistEngine) notifyAll(ctx context.Context, progress chan<- ProgressUpdate, report *RunReport) {
	var pending []int
	for i, res := range report.Results {
		switch {
		case res.Status == StatusSucceeded && res.Persisted:
			pending = append(pending, i)
		case res.Status == StatusFallback && res.PlaylistURL != "":
			pending = append(pending, i)
		}
	}

	for step, i := range pending {
		res := &report.Results[i]
		err := e.Notifier.Notify(ctx, notify.Notification{
			UserID:      res.UserID,
			FirstName:   res.FirstName,
			PhoneNumber: res.PhoneNumber,
			Platform:    res.Platform,
			PlaylistURL: res.PlaylistURL,
			Fallback:    res.Status == StatusFallback,
		})
		if err != nil {
			e.logger.Warn("notification failed", "user_id", res.UserID, "error", err)
			continue
		}
		res.Notified = true
		sendProgress(progress, notifyUpdate(step+1, len(pending), res.UserID))
	}
}

func (e *PlaylistEngine) fail(res Result, err error) Result {
	e.logger.Error("playlist failed", "user_id", res.UserID, "error", err)
	res.Status = StatusFailed
	res.Reason = err.Error()
	return res
}

func (e *PlaylistEngine) fallback(res Result) Result {
	res.Status = StatusFallback
	res.PlatformPlaylistID = e.opts.FallbackPlaylistID
	if e.opts.FallbackPlaylistID == "" {
		e.logger.Warn("no fallback playlist configured", "user_id", res.UserID)
		return res
	}
	if platform, err := e.Platforms.Lookup(res.Platform); err == nil {
		res.PlaylistURL = platform.PlaylistURL(e.opts.FallbackPlaylistID)
	}
	return res
}

func newResult(u *models.User) Result {
	return Result{
		UserID:      u.ID,
		FirstName:   u.FirstName,
		PhoneNumber: u.PhoneNumber,
		Platform:    u.Platform,
	}
}

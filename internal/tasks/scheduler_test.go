package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/shared"
)

var newYorkWindow = shared.SessionConfig{Timezone: "America/New_York", StartHour: 11, EndHour: 18}

type failingSessions struct{ err error }

func (f failingSessions) Create(context.Context, *models.Session) error { return f.err }

func (f failingSessions) Latest(context.Context) (*models.Session, error) { return nil, f.err }

type failingTokens struct {
	TokenStore
	err error
}

func (f failingTokens) InsertBatch(context.Context, []models.SubmissionToken) error { return f.err }

func TestSessionSchedulerWindow(t *testing.T) {
	s := NewSessionScheduler(nil, nil, nil, newYorkWindow, nil, testLogger())

	// 15:00 UTC on Wednesday is 10:00 in New York.
	start, end := s.Window(time.Date(2025, time.January, 8, 15, 0, 0, 0, time.UTC))

	if want := time.Date(2025, time.January, 8, 16, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("expected start %s, got %s", want, start.UTC())
	}
	if want := time.Date(2025, time.January, 8, 23, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("expected end %s, got %s", want, end.UTC())
	}
}

func TestSessionSchedulerOpen(t *testing.T) {
	ctx := context.Background()
	tick := func() time.Time { return time.Date(2025, time.January, 8, 16, 0, 0, 0, time.UTC) }

	t.Run("issues one token per onboarded user", func(t *testing.T) {
		f := newFixture(t)
		a, b := f.addUser(t, "A"), f.addUser(t, "B")
		pending := models.NewUser("Pending", "", models.PlatformSpotify)
		if err := f.users.Create(ctx, pending); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		scheduler := NewSessionScheduler(f.sessions, f.users, f.tokens, newYorkWindow, tick, testLogger())
		progress := make(chan ProgressUpdate, 4)
		res, err := scheduler.Open(ctx, progress)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		if res.Session.ID == "" || !res.Session.End.After(res.Session.Start) {
			t.Errorf("unexpected session %+v", res.Session)
		}

		stored, err := f.tokens.ForSession(ctx, res.Session.ID)
		if err != nil {
			t.Fatalf("failed to list tokens: %v", err)
		}
		if len(stored) != 2 {
			t.Fatalf("expected 2 tokens, got %d", len(stored))
		}

		owners := map[string]bool{}
		seen := map[string]bool{}
		for _, tok := range stored {
			owners[tok.UserID] = true
			if seen[tok.Token] {
				t.Errorf("duplicate token %s", tok.Token)
			}
			seen[tok.Token] = true
			if tok.Used() {
				t.Error("new tokens should be unused")
			}
			if tok.Platform != models.PlatformSpotify {
				t.Errorf("expected user's platform on token, got %s", tok.Platform)
			}
		}
		if !owners[a.ID] || !owners[b.ID] || owners[pending.ID] {
			t.Errorf("unexpected token owners %v", owners)
		}

		latest, err := f.sessions.Latest(ctx)
		if err != nil || latest.ID != res.Session.ID {
			t.Errorf("expected new session to be latest, got %v, %v", latest, err)
		}
		if len(progress) != 2 {
			t.Errorf("expected 2 progress updates, got %d", len(progress))
		}
	})

	t.Run("no eligible users still opens the session", func(t *testing.T) {
		f := newFixture(t)
		scheduler := NewSessionScheduler(f.sessions, f.users, f.tokens, newYorkWindow, tick, testLogger())

		res, err := scheduler.Open(ctx, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if len(res.Tokens) != 0 {
			t.Errorf("expected no tokens, got %d", len(res.Tokens))
		}
	})

	t.Run("token collisions are regenerated", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "A")
		f.addUser(t, "B")

		scheduler := NewSessionScheduler(f.sessions, f.users, f.tokens, newYorkWindow, tick, testLogger())
		values := []string{"dup", "dup", "unique"}
		scheduler.newToken = func() (string, error) {
			v := values[0]
			values = values[1:]
			return v, nil
		}

		res, err := scheduler.Open(ctx, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if res.Tokens[0].Token != "dup" || res.Tokens[1].Token != "unique" {
			t.Errorf("unexpected tokens %v", res.Tokens)
		}
	})

	t.Run("session insert failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "A")
		errDB := errors.New("database is locked")

		scheduler := NewSessionScheduler(failingSessions{err: errDB}, f.users, f.tokens, newYorkWindow, tick, testLogger())
		if _, err := scheduler.Open(ctx, nil); !errors.Is(err, errDB) {
			t.Fatalf("expected session error, got %v", err)
		}
		if n := f.countRows(t, "submission_tokens"); n != 0 {
			t.Errorf("expected no tokens, got %d", n)
		}
	})

	t.Run("token batch failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "A")
		errDB := errors.New("constraint failed")

		scheduler := NewSessionScheduler(f.sessions, f.users, failingTokens{TokenStore: f.tokens, err: errDB}, newYorkWindow, tick, testLogger())
		if _, err := scheduler.Open(ctx, nil); !errors.Is(err, errDB) {
			t.Fatalf("expected token error, got %v", err)
		}
	})

	t.Run("token generation failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "A")
		errRand := errors.New("entropy exhausted")

		scheduler := NewSessionScheduler(f.sessions, f.users, f.tokens, newYorkWindow, tick, testLogger())
		scheduler.newToken = func() (string, error) { return "", errRand }

		if _, err := scheduler.Open(ctx, nil); !errors.Is(err, errRand) {
			t.Fatalf("expected generation error, got %v", err)
		}
	})
}

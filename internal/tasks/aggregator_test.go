package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/echo/internal/models"
)

func spotifySubmission(userID, trackID string) models.Submission {
	return models.Submission{UserID: userID, TrackID: trackID, Platform: models.PlatformSpotify}
}

func TestAggregatorSessionCapped(t *testing.T) {
	a := NewAggregator(nil, nil, 0, 0, testLogger())

	t.Run("friend order with first-wins dedup", func(t *testing.T) {
		got := a.SessionCapped(models.PlatformSpotify, []string{"f", "g", "x", "k"}, map[string]models.Submission{
			"f": spotifySubmission("f", "same"),
			"g": spotifySubmission("g", "same"),
			"k": spotifySubmission("k", "other"),
		})

		want := []Candidate{{TrackID: "same", SubmittedBy: "f"}, {TrackID: "other", SubmittedBy: "k"}}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("candidate %d: expected %v, got %v", i, want[i], got[i])
			}
		}
	})

	t.Run("capped at ten", func(t *testing.T) {
		friends := make([]string, 12)
		subs := map[string]models.Submission{}
		for i := range friends {
			friends[i] = fmt.Sprintf("friend-%02d", i)
			subs[friends[i]] = spotifySubmission(friends[i], fmt.Sprintf("track-%02d", i))
		}

		got := a.SessionCapped(models.PlatformSpotify, friends, subs)
		if len(got) != DefaultSongsPerPlaylist {
			t.Fatalf("expected %d candidates, got %d", DefaultSongsPerPlaylist, len(got))
		}
		if got[9].SubmittedBy != "friend-09" {
			t.Errorf("expected the first ten friends in order, got %v", got[9])
		}
	})

	t.Run("configured cap", func(t *testing.T) {
		small := NewAggregator(nil, nil, 2, 0, testLogger())
		got := small.SessionCapped(models.PlatformSpotify, []string{"a", "b", "c"}, map[string]models.Submission{
			"a": spotifySubmission("a", "1"),
			"b": spotifySubmission("b", "2"),
			"c": spotifySubmission("c", "3"),
		})
		if len(got) != 2 {
			t.Errorf("expected 2 candidates, got %v", got)
		}
	})

	t.Run("foreign platform submissions are skipped", func(t *testing.T) {
		got := a.SessionCapped(models.PlatformSpotify, []string{"a", "b"}, map[string]models.Submission{
			"a": {UserID: "a", TrackID: "apple-1", Platform: models.PlatformAppleMusic},
			"b": spotifySubmission("b", "spotify-1"),
		})
		if len(got) != 1 || got[0].TrackID != "spotify-1" {
			t.Errorf("expected only the spotify track, got %v", got)
		}
	})

	t.Run("no friends", func(t *testing.T) {
		got := a.SessionCapped(models.PlatformSpotify, nil, map[string]models.Submission{"a": spotifySubmission("a", "1")})
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty candidates, got %v", got)
		}
	})
}

func TestAggregatorRecencyCatchup(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first across friends without dedup", func(t *testing.T) {
		f := newFixture(t)
		u, a, b := f.addUser(t, "U"), f.addUser(t, "A"), f.addUser(t, "B")
		f.befriend(t, u, a)
		f.befriend(t, u, b)

		base := testNow.Add(-30 * 24 * time.Hour)
		for i := range 10 {
			s := f.session(t, base.Add(time.Duration(i)*24*time.Hour))
			f.submit(t, s, a, "repeat", base.Add(time.Duration(i)*24*time.Hour+time.Minute))
			f.submit(t, s, b, fmt.Sprintf("b-%d", i), base.Add(time.Duration(i)*24*time.Hour+2*time.Minute))
		}

		agg := NewAggregator(f.friends, f.tokens, 0, 0, testLogger())
		got, err := agg.RecencyCatchup(ctx, u)
		if err != nil {
			t.Fatalf("RecencyCatchup failed: %v", err)
		}

		if len(got) != DefaultCatchupLimit {
			t.Fatalf("expected %d candidates, got %d", DefaultCatchupLimit, len(got))
		}
		if got[0] != (Candidate{TrackID: "b-9", SubmittedBy: b.ID}) {
			t.Errorf("expected newest submission first, got %v", got[0])
		}
		if got[1] != (Candidate{TrackID: "repeat", SubmittedBy: a.ID}) {
			t.Errorf("expected A's latest second, got %v", got[1])
		}

		repeats := 0
		for _, c := range got {
			if c.TrackID == "repeat" {
				repeats++
			}
		}
		if repeats < 2 {
			t.Errorf("expected repeated tracks to be kept, got %d", repeats)
		}
	})

	t.Run("foreign submissions do not take slots", func(t *testing.T) {
		f := newFixture(t)
		u, a, b := f.addUser(t, "U"), f.addUser(t, "A"), f.addUser(t, "B")
		f.befriend(t, u, a)
		f.befriend(t, u, b)

		base := testNow.Add(-10 * 24 * time.Hour)
		for i := range 2 {
			s := f.session(t, base.Add(time.Duration(i)*24*time.Hour))
			f.submit(t, s, a, fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*24*time.Hour))
		}
		for i := range 2 {
			s := f.session(t, base.Add(time.Duration(5+i)*24*time.Hour))
			f.submit(t, s, b, fmt.Sprintf("apple-%d", i), base.Add(time.Duration(5+i)*24*time.Hour))
		}
		if _, err := f.db.Exec("UPDATE submission_tokens SET platform = ? WHERE user_id = ?", models.PlatformAppleMusic.String(), b.ID); err != nil {
			t.Fatalf("failed to move submissions to apple music: %v", err)
		}

		got, err := NewAggregator(f.friends, f.tokens, 0, 2, testLogger()).RecencyCatchup(ctx, u)
		if err != nil {
			t.Fatalf("RecencyCatchup failed: %v", err)
		}
		want := []Candidate{{TrackID: "a-1", SubmittedBy: a.ID}, {TrackID: "a-0", SubmittedBy: a.ID}}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("no friends", func(t *testing.T) {
		f := newFixture(t)
		u := f.addUser(t, "U")

		_, err := NewAggregator(f.friends, f.tokens, 0, 0, testLogger()).RecencyCatchup(ctx, u)
		if !errors.Is(err, ErrUseFallback) {
			t.Errorf("expected ErrUseFallback, got %v", err)
		}
	})

	t.Run("friends without submissions", func(t *testing.T) {
		f := newFixture(t)
		u, a := f.addUser(t, "U"), f.addUser(t, "A")
		f.befriend(t, u, a)

		_, err := NewAggregator(f.friends, f.tokens, 0, 0, testLogger()).RecencyCatchup(ctx, u)
		if !errors.Is(err, ErrUseFallback) {
			t.Errorf("expected ErrUseFallback, got %v", err)
		}
	})
}

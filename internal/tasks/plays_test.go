package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/echo/internal/repositories"
	"github.com/desertthunder/echo/internal/services"
)

func TestPlaysCollectorCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("stores new plays once", func(t *testing.T) {
		f := newFixture(t)
		a := f.addUser(t, "A")
		f.platform.Recent = []services.Track{
			{ID: "t1", Name: "One", Artists: "X, Y", PlayedAt: testNow.Add(-time.Hour)},
			{ID: "t2", Name: "Two", Artists: "Z", AlbumImageURL: "https://img", PlayedAt: testNow.Add(-2 * time.Hour)},
		}

		registry := f.registry()
		collector := NewPlaysCollector(
			f.users,
			repositories.NewTrackPlayRepository(f.db),
			NewCredentialManager(f.credentials, registry, fixedClock, testLogger()),
			registry,
			testLogger(),
		)

		results, err := collector.Collect(ctx, nil)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(results) != 1 || results[0].UserID != a.ID || results[0].Added != 2 || results[0].Err != nil {
			t.Fatalf("unexpected results %+v", results)
		}

		results, err = collector.Collect(ctx, nil)
		if err != nil {
			t.Fatalf("second Collect failed: %v", err)
		}
		if results[0].Fetched != 2 || results[0].Added != 0 {
			t.Errorf("expected duplicate plays to be ignored, got %+v", results[0])
		}

		plays, err := repositories.NewTrackPlayRepository(f.db).ListByUser(ctx, a.ID, 10)
		if err != nil {
			t.Fatalf("failed to list plays: %v", err)
		}
		if len(plays) != 2 || plays[0].TrackID != "t1" {
			t.Errorf("unexpected stored plays %+v", plays)
		}
	})

	t.Run("failing user is reported and skipped", func(t *testing.T) {
		f := newFixture(t)
		f.addUser(t, "A")
		f.addUser(t, "B")
		errRecent := errors.New("rate limited")
		f.platform.RecentErr = errRecent

		registry := f.registry()
		collector := NewPlaysCollector(
			f.users,
			repositories.NewTrackPlayRepository(f.db),
			NewCredentialManager(f.credentials, registry, fixedClock, testLogger()),
			registry,
			testLogger(),
		)

		results, err := collector.Collect(ctx, nil)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected both users attempted, got %d", len(results))
		}
		for _, r := range results {
			if !errors.Is(r.Err, errRecent) {
				t.Errorf("expected platform error for %s, got %v", r.UserID, r.Err)
			}
		}
	})
}

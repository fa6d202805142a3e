package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/formatter"
	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/tasks"
)

// PlaylistsGenerate builds and delivers playlists for the most recent closed session.
//
// The report is printed even when persistence fails so operators can see which playlists exist
// on the platform without a stored row.
func (r *Runner) PlaylistsGenerate(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	progressCh, done := r.watch(cmd.Bool("json"))
	report, runErr := p.engine.Generate(ctx, progressCh)
	done()

	if report != nil && len(report.Results) > 0 {
		if err := r.writeReport(report, cmd); err != nil {
			return err
		}
	}
	return runErr
}

// PlaylistsShow prints a stored playlist looked up by the id its platform assigned.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	playlist, err := p.playlists.GetByPlatformID(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	tracks, err := p.playlistTracks.ListByPlaylist(ctx, playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}

	var url string
	if platform, err := p.platforms.Lookup(playlist.Platform); err == nil {
		url = platform.PlaylistURL(playlist.PlatformPlaylistID)
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Playlist *models.Playlist      `json:"playlist"`
			URL      string                `json:"url,omitempty"`
			Tracks   []models.PlaylistTrack `json:"tracks"`
		}{playlist, url, tracks}, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s", formatter.PlaylistToText(playlist, url, tracks))
}

// OnboardingComplete marks a user onboarded and sends their catch-up playlist.
func (r *Runner) OnboardingComplete(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	report, runErr := p.engine.Onboard(ctx, cmd.String("user"))
	if report != nil && len(report.Results) > 0 {
		if err := r.writeReport(report, cmd); err != nil {
			return err
		}
	}
	return runErr
}

func (r *Runner) writeReport(report *tasks.RunReport, cmd *cli.Command) error {
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteRunReportCSV(report, path); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	if err := r.writePlainln("%s", formatter.RunReportToText(report)); err != nil {
		return err
	}
	return r.writePlain("Succeeded: %d  Fallback: %d  Failed: %d  Notified: %d\n",
		report.Count(tasks.StatusSucceeded), report.Count(tasks.StatusFallback),
		report.Count(tasks.StatusFailed), len(report.Notified()))
}

// PlaysCollect fetches recent listening history for every onboarded user.
func (r *Runner) PlaysCollect(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	progressCh, done := r.watch(cmd.Bool("json"))
	results, err := p.plays.Collect(ctx, progressCh)
	done()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type row struct {
			UserID  string `json:"user_id"`
			Fetched int    `json:"fetched"`
			Added   int    `json:"added"`
			Error   string `json:"error,omitempty"`
		}
		rows := make([]row, 0, len(results))
		for _, res := range results {
			rw := row{UserID: res.UserID, Fetched: res.Fetched, Added: res.Added}
			if res.Err != nil {
				rw.Error = res.Err.Error()
			}
			rows = append(rows, rw)
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if err := r.writePlainln("%s", formatter.PlaysToText(results)); err != nil {
		return fmt.Errorf("failed to print plays: %w", err)
	}
	return nil
}

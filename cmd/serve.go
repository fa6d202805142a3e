package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/jobs"
	"github.com/desertthunder/echo/internal/server"
	"github.com/desertthunder/echo/internal/shared"
)

const (
	jobSession   = "session"
	jobPlaylists = "playlists"
	jobPlays     = "plays"
)

// Serve runs the scheduled pipeline jobs alongside /healthz and /metrics until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := r.runtime()
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	router := server.NewRouter(r.logger)
	router.Handler(server.NewHealthHandler(db, runtime.Entries))
	srv := server.New(r.config.Server.Host, r.config.Server.Port, router, r.logger)
	r.logger.Info("serving", "addr", srv.Addr(), "routes", router.Patterns())

	runtime.Start()
	for _, e := range runtime.Entries() {
		r.logger.Info("job scheduled", "job", e.Name, "spec", e.Spec, "next", e.Next)
	}

	if name := cmd.String("run-now"); name != "" {
		go func() {
			err := runtime.RunNow(ctx, name)
			switch {
			case errors.Is(err, shared.ErrJobRunning):
				r.logger.Warn("job already running, not starting another", "job", name)
			case err != nil:
				r.logger.Error("job failed", "job", name, "error", err)
			}
		}()
	}

	runErr := srv.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runtime.Stop(stopCtx); err != nil {
		r.logger.Warn("jobs did not stop cleanly", "error", err)
	}

	return runErr
}

// runtime registers the session, playlist and plays jobs on a cron runtime in the session timezone.
// A job with an empty schedule is left out.
func (r *Runner) runtime() (*jobs.Runtime, error) {
	p, err := r.pipeline()
	if err != nil {
		return nil, err
	}

	rt := jobs.New(r.config.Session.Location(), shared.WithLogger(r.logger, "component", "jobs"))

	defs := []jobs.Job{
		{
			Name: jobSession,
			Spec: r.config.Session.Cron,
			Run: func(ctx context.Context) error {
				res, err := p.scheduler.Open(ctx, nil)
				if err != nil {
					return err
				}
				r.logger.Info("session opened", "id", res.Session.ID, "tokens", len(res.Tokens))
				return nil
			},
		},
		{
			Name: jobPlaylists,
			Spec: r.config.Playlists.Cron,
			Run: func(ctx context.Context) error {
				report, err := p.engine.Generate(ctx, nil)
				if errors.Is(err, shared.ErrSessionOpen) || errors.Is(err, shared.ErrNoSession) {
					r.logger.Warn("no closed session to build playlists for", "error", err)
					return nil
				}
				if report != nil {
					r.logger.Info("playlists generated", "session", report.SessionID,
						"users", len(report.Results), "notified", len(report.Notified()))
				}
				return err
			},
		},
		{
			Name: jobPlays,
			Spec: r.config.Plays.Cron,
			Run: func(ctx context.Context) error {
				results, err := p.plays.Collect(ctx, nil)
				if err != nil {
					return err
				}
				added := 0
				for _, res := range results {
					added += res.Added
				}
				r.logger.Info("plays collected", "users", len(results), "added", added)
				return nil
			},
		},
	}

	for _, j := range defs {
		if j.Spec == "" {
			r.logger.Debug("job disabled", "job", j.Name)
			continue
		}
		if err := rt.Add(j); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", j.Name, err)
		}
	}

	return rt, nil
}

package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/formatter"
)

// SessionOpen opens a session for today's window and issues a token to every onboarded user.
func (r *Runner) SessionOpen(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	progressCh, done := r.watch(cmd.Bool("json"))
	result, err := p.scheduler.Open(ctx, progressCh)
	done()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s", formatter.SessionToText(result))
}

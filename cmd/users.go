package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/models"
)

// UsersAdd registers a user.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	platform, err := models.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return err
	}

	p, err := r.pipeline()
	if err != nil {
		return err
	}

	user := models.NewUser(cmd.String("name"), cmd.String("phone"), platform)
	user.OnboardingComplete = cmd.Bool("onboarded")
	if err := p.users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("user created", "id", user.ID, "platform", platform)
	return r.writePlain("✓ Created user %s (%s on %s)\n", user.ID, user.FirstName, platform)
}

// UsersList prints every registered user.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	users, err := p.users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, cmd.Bool("pretty"))
	}

	for _, u := range users {
		onboarded := " "
		if u.OnboardingComplete {
			onboarded = "✓"
		}
		r.writePlain("%s %s  %-12s %s\n", onboarded, u.ID, u.FirstName, u.Platform)
	}
	r.writePlain("Total: %d users\n", len(users))
	return nil
}

// FriendsAdd connects two users in both directions.
func (r *Runner) FriendsAdd(ctx context.Context, cmd *cli.Command) error {
	userID, friendID := cmd.String("user"), cmd.String("friend")

	p, err := r.pipeline()
	if err != nil {
		return err
	}

	for _, id := range []string{userID, friendID} {
		if _, err := p.users.Get(ctx, id); err != nil {
			return err
		}
	}

	if err := p.friends.AddFriendship(ctx, userID, friendID); err != nil {
		return fmt.Errorf("failed to add friendship: %w", err)
	}

	return r.writePlain("✓ %s and %s are now friends\n", userID, friendID)
}

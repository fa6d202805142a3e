package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/models"
	"github.com/desertthunder/echo/internal/server"
	"github.com/desertthunder/echo/internal/services"
	"github.com/desertthunder/echo/internal/shared"
)

// AuthLink performs the OAuth2 flow for a user's platform and stores the resulting credential.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthLink(ctx context.Context, cmd *cli.Command) error {
	p, err := r.pipeline()
	if err != nil {
		return err
	}

	user, err := p.users.Get(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	platform, err := r.registry().Lookup(user.Platform)
	if err != nil {
		return err
	}

	tokens, err := r.doOAuth(ctx, platform)
	if err != nil {
		return err
	}

	platformUserID, err := r.linkAccount(ctx, p, user, platform, tokens)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Linked %s to %s account %s", user.FirstName, platform.Name(), platformUserID)
	return nil
}

// linkAccount stores tokens for user and records the platform's id for them.
func (r *Runner) linkAccount(ctx context.Context, p *pipeline, user *models.User, platform services.Platform, tokens *services.Tokens) (string, error) {
	credential := &models.Credential{
		UserID:       user.ID,
		Platform:     platform.Name(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    r.now().Add(tokens.ExpiresIn).UTC(),
	}
	if err := p.credentials.Save(ctx, credential); err != nil {
		return "", err
	}

	platformUserID, err := platform.GetUserID(ctx, tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to fetch platform profile: %w", err)
	}

	if err := p.users.SetPlatformUserID(ctx, user.ID, platformUserID); err != nil {
		return "", err
	}

	r.logger.Info("account linked", "user", user.ID, "platform", platform.Name(), "platform_user", platformUserID)
	return platformUserID, nil
}

func (r *Runner) doOAuth(ctx context.Context, platform services.Platform) (*services.Tokens, error) {
	state, err := shared.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := platform.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(platform, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	srv := server.New(r.config.Server.Host, r.config.Server.Port, router, r.logger)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", platform.Name(), srv.Addr())
		serverErrors <- srv.Run(srvCtx)
	}()

	r.writePlain("→ Opening browser for %s authorization...\n", platform.Name())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.authTimeout)

	timeout := time.NewTimer(r.authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Tokens == nil {
		return nil, errNoTokens
	}

	return result.Tokens, nil
}

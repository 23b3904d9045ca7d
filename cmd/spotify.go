package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dylantheriot/bubl-backend/internal/formatter"
	"github.com/dylantheriot/bubl-backend/internal/repositories"
	"github.com/dylantheriot/bubl-backend/internal/tokens"
	"github.com/urfave/cli/v3"
)

// tokenApp loads and validates config, then wires the graph the token commands share.
func (r *Runner) tokenApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return r.buildApp(ctx, config)
}

// SpotifyAppToken performs the client credentials grant and prints the masked token.
func (r *Runner) SpotifyAppToken(ctx context.Context, cmd *cli.Command) error {
	a, err := r.tokenApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.apps.Token(ctx); err != nil {
		return fmt.Errorf("failed to get app token: %w", err)
	}

	tok := a.apps.Current()
	return formatter.WriteTokenSummary(r.output, "Spotify app token", tok.AccessToken, tok.ExpiresAt, r.now())
}

// SpotifyConnect prints the consent URL for --user, creating the user document when missing.
//
// The authorization code comes back to the running server's /callback route.
func (r *Runner) SpotifyConnect(ctx context.Context, cmd *cli.Command) error {
	a, err := r.tokenApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := cmd.String("user")
	user, err := a.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		if user, err = a.users.Create(ctx, userID); err != nil {
			return err
		}
		r.logger.Info("created user", "user", userID)
	}

	if user.IsConnected {
		r.writePlain("✓ %s is already connected to Spotify\n", userID)
		return nil
	}

	authURL := a.exchanger.AuthURL(userID)
	r.writePlainHeader("Link Spotify for " + userID)
	r.writePlain("%s\n", authURL)

	if cmd.Bool("open") {
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser", "error", err)
			r.writePlainln("Open the URL above in a browser to continue.")
		}
	}
	return nil
}

// SpotifyRefresh forces a refresh grant for --user and prints the new access token.
func (r *Runner) SpotifyRefresh(ctx context.Context, cmd *cli.Command) error {
	a, err := r.tokenApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := cmd.String("user")
	record, err := a.gate.Refresh(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", userID, err)
	}

	r.logger.Info("refreshed user token", "user", userID)
	return formatter.WriteTokenSummary(r.output, "Spotify user token ("+userID+")", record.AccessToken, record.ExpiresAt, r.now())
}

// SpotifyStatus prints the stored credentials for --user without contacting Spotify.
func (r *Runner) SpotifyStatus(ctx context.Context, cmd *cli.Command) error {
	a, err := r.tokenApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := cmd.String("user")
	record, err := a.users.TokenRecord(ctx, userID)
	if err != nil {
		return err
	}
	if !record.IsConnected {
		return fmt.Errorf("%w: %s", tokens.ErrNotConnected, userID)
	}
	return formatter.WriteTokenSummary(r.output, "Spotify user token ("+userID+")", record.AccessToken, record.ExpiresAt, r.now())
}

package tokens

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/oauth2"
)

// Refresher exchanges a user's stored refresh token for a fresh access token.
type Refresher struct {
	opts   Options
	config *oauth2.Config
	store  Store
	logger *log.Logger
}

// NewRefresher creates a [Refresher] that reads and writes credentials through store.
func NewRefresher(opts Options, store Store) *Refresher {
	opts = opts.withDefaults()
	return &Refresher{
		opts:   opts,
		config: opts.oauthConfig(),
		store:  store,
		logger: shared.WithLogger(opts.Logger, "component", "refresh"),
	}
}

// Refresh performs a refresh-token grant for userID and persists the result.
//
// access_token and expires_at are always rewritten; refresh_token only when the provider issued a new
// one. The write is partial. On any failure nothing is written and an error is returned.
func (r *Refresher) Refresh(ctx context.Context, userID string) (*models.UserTokenRecord, error) {
	record, err := r.store.TokenRecord(ctx, userID)
	if err != nil {
		return nil, storeError(userID, err)
	}
	if !record.IsConnected || record.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}

	grant, err := r.grant(ctx, record.RefreshToken)
	if err != nil {
		r.logger.Error("refresh grant failed", "user", userID, "error", err)
		return nil, err
	}

	update := models.TokenUpdate{
		AccessToken: &grant.AccessToken,
		ExpiresAt:   &grant.ExpiresAt,
	}
	refreshed := *record
	refreshed.AccessToken = grant.AccessToken
	refreshed.ExpiresAt = grant.ExpiresAt
	if grant.RefreshToken != "" {
		update.RefreshToken = &grant.RefreshToken
		refreshed.RefreshToken = grant.RefreshToken
	}

	if err := r.store.UpdateTokens(ctx, userID, update); err != nil {
		return nil, storeError(userID, err)
	}

	r.logger.Debug("refreshed access token",
		"user", userID,
		"rotated", grant.RefreshToken != "",
		"access_token", shared.MaskToken(grant.AccessToken),
		"expires_at", grant.ExpiresAt,
	)
	return &refreshed, nil
}

func (r *Refresher) grant(ctx context.Context, refreshToken string) (*Grant, error) {
	rctx, cancel := r.opts.requestContext(ctx)
	defer cancel()

	issuedAt := r.opts.Now()
	// An access-token-less token forces the source to hit the token endpoint.
	tok, err := r.config.TokenSource(rctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classify(GrantRefreshToken, err)
	}
	return grantFrom(GrantRefreshToken, tok, issuedAt, refreshToken)
}

package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/repositories"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/oauth2"
)

// Store is the slice of user persistence the token subsystem depends on.
type Store interface {
	TokenRecord(ctx context.Context, userID string) (*models.UserTokenRecord, error)
	UpdateTokens(ctx context.Context, userID string, update models.TokenUpdate) error
}

// Exchanger converts one-time authorization codes into user token pairs.
type Exchanger struct {
	opts   Options
	config *oauth2.Config
	store  Store
	logger *log.Logger
}

// NewExchanger creates an [Exchanger]; store receives the initial credentials on [Exchanger.Connect].
func NewExchanger(opts Options, store Store) *Exchanger {
	opts = opts.withDefaults()
	return &Exchanger{
		opts:   opts,
		config: opts.oauthConfig(),
		store:  store,
		logger: shared.WithLogger(opts.Logger, "component", "exchange"),
	}
}

// AuthURL returns the provider consent URL for userID; the user id round-trips as the state parameter.
func (e *Exchanger) AuthURL(userID string) string {
	return e.config.AuthCodeURL(userID, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange sends code and the configured redirect URI to the token endpoint.
//
// It does not retry and writes nothing.
func (e *Exchanger) Exchange(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrMissingArgument)
	}

	rctx, cancel := e.opts.requestContext(ctx)
	defer cancel()

	issuedAt := e.opts.Now()
	tok, err := e.config.Exchange(rctx, code)
	if err != nil {
		return nil, classify(GrantAuthorizationCode, err)
	}

	grant, err := grantFrom(GrantAuthorizationCode, tok, issuedAt, "")
	if err != nil {
		return nil, err
	}
	if grant.RefreshToken == "" {
		return nil, malformed(GrantAuthorizationCode, "missing refresh_token")
	}
	return grant, nil
}

// Connect exchanges code and persists the resulting credentials onto userID's existing record.
//
// The record is checked before the code is spent, and is only written after a successful exchange.
// The write is a partial update, so profile fields on the same document survive.
func (e *Exchanger) Connect(ctx context.Context, userID, code string) (*models.UserTokenRecord, error) {
	if _, err := e.store.TokenRecord(ctx, userID); err != nil {
		return nil, storeError(userID, err)
	}

	grant, err := e.Exchange(ctx, code)
	if err != nil {
		e.logger.Error("authorization code exchange failed", "user", userID, "error", err)
		return nil, err
	}

	connected := true
	update := models.TokenUpdate{
		AccessToken:  &grant.AccessToken,
		RefreshToken: &grant.RefreshToken,
		ExpiresAt:    &grant.ExpiresAt,
		IsConnected:  &connected,
	}
	if err := e.store.UpdateTokens(ctx, userID, update); err != nil {
		return nil, storeError(userID, err)
	}

	e.logger.Info("spotify account connected", "user", userID, "expires_at", grant.ExpiresAt)
	return &models.UserTokenRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		IsConnected:  true,
	}, nil
}

// storeError maps a missing document onto [ErrMissingUserRecord].
func storeError(userID string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrMissingUserRecord, userID)
	}
	return fmt.Errorf("token store: %w", err)
}

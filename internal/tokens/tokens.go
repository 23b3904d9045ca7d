package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://accounts.spotify.com/authorize"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultTimeout  = 10 * time.Second

	// DefaultSkew is subtracted from expires_at before comparing with the current time.
	DefaultSkew = 30 * time.Second
)

// Options configures the token endpoint clients.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string

	// HTTPClient is used for every token endpoint call. Defaults to [http.DefaultClient].
	HTTPClient *http.Client
	// Timeout bounds each token endpoint round trip. Defaults to 10s.
	Timeout time.Duration
	Logger  *log.Logger
	// Now is the clock used to compute expires_at. Defaults to [time.Now].
	Now func() time.Time
}

// OptionsFromConfig maps the Spotify section of the application config onto [Options].
func OptionsFromConfig(cfg *shared.Config, logger *log.Logger) Options {
	sp := cfg.Credentials.Spotify
	return Options{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		RedirectURL:  sp.RedirectURI,
		AuthURL:      sp.AuthURL,
		TokenURL:     sp.TokenURL,
		Scopes:       sp.Scopes,
		Timeout:      cfg.Server.ProviderTimeout.Duration,
		Logger:       logger,
	}
}

func (o Options) withDefaults() Options {
	if o.AuthURL == "" {
		o.AuthURL = defaultAuthURL
	}
	if o.TokenURL == "" {
		o.TokenURL = defaultTokenURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// oauthConfig returns the authorization code / refresh token configuration.
//
// Client credentials always travel in the Authorization: Basic header.
func (o Options) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scopes:       o.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   o.AuthURL,
			TokenURL:  o.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// requestContext attaches the HTTP client and timeout used by the oauth2 package.
func (o Options) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.HTTPClient)
	return context.WithTimeout(ctx, o.Timeout)
}

// Grant is a successful token endpoint response.
type Grant struct {
	AccessToken string
	// RefreshToken is empty when the provider did not issue one.
	RefreshToken string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
}

// grantFrom validates tok and computes ExpiresAt from issuedAt, the instant the request was sent.
//
// The oauth2 package fills RefreshToken from the request on refresh grants; sentRefresh strips that
// back out so callers can tell whether the provider rotated it.
func grantFrom(grant string, tok *oauth2.Token, issuedAt time.Time, sentRefresh string) (*Grant, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, malformed(grant, "missing access_token")
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = extraSeconds(tok.Extra("expires_in"))
	}
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = tok.Expiry.Sub(issuedAt).Round(time.Second)
	}
	if expiresIn <= 0 {
		return nil, malformed(grant, "missing expires_in")
	}

	refresh := tok.RefreshToken
	if refresh == sentRefresh {
		refresh = ""
	}

	return &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		ExpiresAt:    issuedAt.UTC().Add(expiresIn),
	}, nil
}

// extraSeconds reads a raw expires_in value from the token response.
func extraSeconds(v any) time.Duration {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int64:
		n = float64(x)
	case json.Number:
		n, _ = x.Float64()
	case string:
		n, _ = strconv.ParseFloat(x, 64)
	}
	return time.Duration(n) * time.Second
}

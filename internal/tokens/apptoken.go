package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// AppTokenManager owns the process-wide client-credentials token.
//
// Construct one at startup and inject it wherever catalog calls are made. The cached token is replaced
// whenever it expires or is invalidated, and never cleared on failure because a failure is never cached.
type AppTokenManager struct {
	opts   Options
	config *clientcredentials.Config
	logger *log.Logger

	mu    sync.RWMutex
	token *models.AppToken
	group singleflight.Group
}

// NewAppTokenManager creates a manager that performs the client-credentials grant on demand.
func NewAppTokenManager(opts Options) *AppTokenManager {
	opts = opts.withDefaults()
	return &AppTokenManager{
		opts: opts,
		config: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		logger: shared.WithLogger(opts.Logger, "component", "app-token"),
	}
}

// Token returns a valid app access token, exchanging client credentials when none is cached or it expired.
//
// Concurrent callers that observe an expired token share a single exchange. The exchange is detached
// from any one caller's cancellation and bounded by the configured timeout; a caller whose ctx ends
// first gets ctx's error while the others keep waiting.
func (m *AppTokenManager) Token(ctx context.Context) (string, error) {
	if tok := m.cached(); tok != nil {
		return tok.AccessToken, nil
	}

	flight := context.WithoutCancel(ctx)
	ch := m.group.DoChan(GrantClientCredentials, func() (any, error) {
		if tok := m.cached(); tok != nil {
			return tok, nil
		}
		return m.exchangeWithRetry(flight)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: waiting for client credentials exchange: %v", shared.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			m.logger.Debug("joined in-flight client credentials exchange")
		}
		return res.Val.(*models.AppToken).AccessToken, nil
	}
}

// Current returns a copy of the cached token, or nil when none is cached.
func (m *AppTokenManager) Current() *models.AppToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil
	}
	tok := *m.token
	return &tok
}

// Invalidate drops the cached token so the next call performs a fresh exchange.
func (m *AppTokenManager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

func (m *AppTokenManager) cached() *models.AppToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.Valid(m.opts.Now().Add(appTokenSkew(m.token))) {
		return m.token
	}
	return nil
}

// appTokenSkew is [DefaultSkew], clamped to a quarter of the token's lifetime so short-lived tokens
// are still served from cache.
func appTokenSkew(tok *models.AppToken) time.Duration {
	if tok == nil || tok.IssuedAt.IsZero() {
		return DefaultSkew
	}
	return min(DefaultSkew, tok.ExpiresAt.Sub(tok.IssuedAt)/4)
}

// exchangeWithRetry performs the grant, retrying once when the first failure is transient.
func (m *AppTokenManager) exchangeWithRetry(ctx context.Context) (*models.AppToken, error) {
	tok, err := m.exchange(ctx)
	if err == nil {
		return tok, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || !perr.Transient() || ctx.Err() != nil {
		return nil, err
	}

	m.logger.Warn("client credentials exchange failed, retrying once", "error", err)
	return m.exchange(ctx)
}

func (m *AppTokenManager) exchange(ctx context.Context) (*models.AppToken, error) {
	rctx, cancel := m.opts.requestContext(ctx)
	defer cancel()

	issuedAt := m.opts.Now()
	tok, err := m.config.Token(rctx)
	if err != nil {
		return nil, classify(GrantClientCredentials, err)
	}

	grant, err := grantFrom(GrantClientCredentials, tok, issuedAt, "")
	if err != nil {
		return nil, err
	}

	appToken := &models.AppToken{AccessToken: grant.AccessToken, IssuedAt: issuedAt.UTC(), ExpiresAt: grant.ExpiresAt}

	m.mu.Lock()
	m.token = appToken
	m.mu.Unlock()

	m.logger.Info("issued app token", "expires_at", appToken.ExpiresAt.Format(time.RFC3339))
	return appToken, nil
}

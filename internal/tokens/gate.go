package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dylantheriot/bubl-backend/internal/models"
	"github.com/dylantheriot/bubl-backend/internal/shared"
)

// Policy selects when the [Gate] refreshes.
type Policy string

const (
	// RefreshOnExpiry refreshes only when the stored token is locally detected as expired.
	RefreshOnExpiry Policy = shared.RefreshOnExpiry
	// RefreshAlways refreshes before every authenticated call.
	RefreshAlways Policy = shared.RefreshAlways
)

// TokenRefresher is satisfied by [*Refresher].
type TokenRefresher interface {
	Refresh(ctx context.Context, userID string) (*models.UserTokenRecord, error)
}

// GateOpts configures a [Gate].
type GateOpts struct {
	Policy Policy
	// Skew treats tokens as expired this long before expires_at. Defaults to [DefaultSkew]; negative disables.
	Skew   time.Duration
	Locker Locker
	Logger *log.Logger
	Now    func() time.Time
}

// Gate hands out access tokens that are valid at the time of the call.
type Gate struct {
	store     Store
	refresher TokenRefresher
	policy    Policy
	skew      time.Duration
	locker    Locker
	logger    *log.Logger
	now       func() time.Time
}

// NewGate creates a [Gate] reading records from store and refreshing through refresher.
func NewGate(store Store, refresher TokenRefresher, opts GateOpts) *Gate {
	if opts.Policy == "" {
		opts.Policy = RefreshOnExpiry
	}
	switch {
	case opts.Skew == 0:
		opts.Skew = DefaultSkew
	case opts.Skew < 0:
		opts.Skew = 0
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Gate{
		store:     store,
		refresher: refresher,
		policy:    opts.Policy,
		skew:      opts.Skew,
		locker:    opts.Locker,
		logger:    shared.WithLogger(opts.Logger, "component", "gate"),
		now:       opts.Now,
	}
}

// Policy returns the configured refresh policy.
func (g *Gate) Policy() Policy { return g.policy }

// AccessToken returns a usable access token for userID, refreshing first when the policy requires it.
//
// Users without a record fail with [ErrMissingUserRecord]; unconnected users with [ErrNotConnected],
// before any provider call.
func (g *Gate) AccessToken(ctx context.Context, userID string) (string, error) {
	record, err := g.load(ctx, userID)
	if err != nil {
		return "", err
	}

	if g.policy != RefreshAlways && !record.Expired(g.now(), g.skew) {
		return record.AccessToken, nil
	}

	record, err = g.refresh(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// Refresh forces a refresh for userID regardless of policy.
func (g *Gate) Refresh(ctx context.Context, userID string) (*models.UserTokenRecord, error) {
	if _, err := g.load(ctx, userID); err != nil {
		return nil, err
	}
	return g.refreshLocked(ctx, userID, true)
}

func (g *Gate) refresh(ctx context.Context, userID string) (*models.UserTokenRecord, error) {
	return g.refreshLocked(ctx, userID, g.policy == RefreshAlways)
}

// refreshLocked runs the refresher under the user's lock. Unless force is set, a record that another
// holder already refreshed is returned as is.
func (g *Gate) refreshLocked(ctx context.Context, userID string, force bool) (*models.UserTokenRecord, error) {
	unlock, err := g.locker.Lock(ctx, "spotify:"+userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !force {
		current, err := g.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !current.Expired(g.now(), g.skew) {
			g.logger.Debug("token refreshed by concurrent request", "user", userID)
			return current, nil
		}
	}

	g.logger.Debug("refreshing access token", "user", userID, "policy", g.policy)
	return g.refresher.Refresh(ctx, userID)
}

func (g *Gate) load(ctx context.Context, userID string) (*models.UserTokenRecord, error) {
	record, err := g.store.TokenRecord(ctx, userID)
	if err != nil {
		return nil, storeError(userID, err)
	}
	if !record.IsConnected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}
	return record, nil
}

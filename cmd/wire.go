package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dylantheriot/bubl-backend/internal/repositories"
	"github.com/dylantheriot/bubl-backend/internal/server"
	"github.com/dylantheriot/bubl-backend/internal/services"
	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/dylantheriot/bubl-backend/internal/tokens"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// app is the wired object graph behind the server and the token commands.
type app struct {
	store     repositories.DocumentStore
	users     *repositories.UserRepository
	boards    *repositories.BoardRepository
	exchanger *tokens.Exchanger
	apps      *tokens.AppTokenManager
	gate      *tokens.Gate
	spotify   *services.SpotifyService
	youtube   *services.YouTubeService
	giphy     *services.GiphyService
	cache     *services.SearchCache

	closers []func(context.Context) error
}

// openStore returns the document store selected by store.driver.
func (r *Runner) openStore(ctx context.Context, config *shared.Config) (repositories.DocumentStore, error) {
	if r.store != nil {
		return r.store, nil
	}

	switch config.Store.Driver {
	case shared.DriverMongo:
		r.logger.Info("connecting to mongodb", "database", config.Store.Mongo.Database)
		return repositories.NewMongoStore(ctx, config.Store.Mongo.URI, config.Store.Mongo.Database)
	case shared.DriverSQLite:
		r.logger.Info("opening database", "path", config.Database.Path)
		db, err := shared.NewDatabase(config.Database.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repositories.NewSQLiteStore(db), nil
	case shared.DriverMemory:
		r.logger.Warn("using in-memory store; documents are lost on exit")
		return repositories.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", shared.ErrInvalidConfig, config.Store.Driver)
	}
}

// locker returns a Redis-backed refresh lock when redis.enabled is set, otherwise an in-process one.
func (r *Runner) locker(ctx context.Context, config *shared.Config, a *app) (tokens.Locker, error) {
	if !config.Redis.Enabled {
		return tokens.NewLocalLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	r.logger.Info("using redis refresh locks", "addr", config.Redis.Addr)
	return tokens.NewRedisLocker(client, "bubl", config.Server.ProviderTimeout.Duration*2), nil
}

// providerLimiter paces outbound provider calls; a non-positive rate disables limiting.
func providerLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
}

// buildApp wires stores, token clients and provider services from config.
//
// YouTube and Giphy are left nil when their API keys are not configured.
func (r *Runner) buildApp(ctx context.Context, config *shared.Config) (*app, error) {
	store, err := r.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:  store,
		users:  repositories.NewUserRepository(store),
		boards: repositories.NewBoardRepository(store),
		cache:  services.NewSearchCache(config.Cache.SearchTTL.Duration),
	}
	if r.store == nil {
		a.closers = append(a.closers, store.Close)
	}
	a.closers = append(a.closers, func(context.Context) error { a.cache.Close(); return nil })

	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	locker, err := r.locker(ctx, config, a)
	if err != nil {
		return fail(err)
	}

	opts := tokens.OptionsFromConfig(config, r.logger)
	opts.HTTPClient = r.httpClient
	opts.Now = r.now

	a.exchanger = tokens.NewExchanger(opts, a.users)
	a.apps = tokens.NewAppTokenManager(opts)
	a.gate = tokens.NewGate(a.users, tokens.NewRefresher(opts, a.users), tokens.GateOpts{
		Policy: tokens.Policy(config.Server.RefreshPolicy),
		Locker: locker,
		Logger: r.logger,
		Now:    r.now,
	})

	limiter := providerLimiter(config.Limits.ProviderRPS)
	a.spotify, err = services.NewSpotifyService(services.SpotifyOpts{
		APIURL:  config.Credentials.Spotify.APIURL,
		Apps:    a.apps,
		Users:   a.gate,
		Fetcher: tokens.NewFetcher(r.httpClient, config.Server.ProviderTimeout.Duration, limiter),
		Cache:   a.cache,
		Logger:  r.logger,
	})
	if err != nil {
		return fail(err)
	}

	if key := config.Credentials.YouTube.APIKey; key != "" {
		a.youtube, err = services.NewYouTubeService(ctx, services.YouTubeOpts{
			APIKey:     key,
			Endpoint:   config.Credentials.YouTube.Endpoint,
			HTTPClient: r.httpClient,
			Cache:      a.cache,
			Logger:     r.logger,
		})
		if err != nil {
			return fail(err)
		}
	} else {
		r.logger.Warn("youtube api key not set; /youtube/search is disabled")
	}

	if key := config.Credentials.Giphy.APIKey; key != "" {
		a.giphy, err = services.NewGiphyService(services.GiphyOpts{
			APIKey:     key,
			BaseURL:    config.Credentials.Giphy.Endpoint,
			HTTPClient: r.httpClient,
			Limiter:    limiter,
			Cache:      a.cache,
			Logger:     r.logger,
		})
		if err != nil {
			return fail(err)
		}
	} else {
		r.logger.Warn("giphy api key not set; /giphy/search is disabled")
	}

	return a, nil
}

// deps adapts the graph to the server's collaborators. Optional services are only assigned when
// set so the server sees a nil interface rather than a typed nil.
func (a *app) deps() server.Deps {
	deps := server.Deps{
		Users:     a.users,
		Boards:    a.boards,
		Store:     a.store,
		Connector: a.exchanger,
		Spotify:   a.spotify,
	}
	if a.youtube != nil {
		deps.YouTube = a.youtube
	}
	if a.giphy != nil {
		deps.Giphy = a.giphy
	}
	return deps
}

// Close releases everything buildApp acquired, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := closeWithTimeout(a.closers[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package main

import (
	"context"
	"fmt"

	"github.com/dylantheriot/bubl-backend/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Set credentials.spotify.client_id and client_secret, or export CLIENT_ID and CLIENT_SECRET.\n")
	return nil
}

// SetupDatabase opens the configured store, running SQLite migrations, and checks connectivity.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := r.openStore(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", config.Store.Driver, err)
	}
	if r.store == nil {
		defer closeWithTimeout(store.Close)
	}

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	r.logger.Infof("setup complete for %s store", config.Store.Driver)
	r.writePlain("✓ %s store ready\n", config.Store.Driver)
	return nil
}

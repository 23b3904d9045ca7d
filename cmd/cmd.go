// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overriding server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles first-run setup of configuration and storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the configured store and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// spotifyCommand handles token operations against the Spotify accounts service.
func spotifyCommand(r *Runner) *cli.Command {
	userFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "User id (uuid) whose credentials to use",
			Required: true,
		}
	}

	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify token operations",
		Commands: []*cli.Command{
			{
				Name:   "app-token",
				Usage:  "Request a client credentials token and print a summary",
				Action: r.SpotifyAppToken,
			},
			{
				Name:  "connect",
				Usage: "Print the consent URL that links a user's Spotify account",
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the consent URL in the system browser",
					},
				},
				Action: r.SpotifyConnect,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh a connected user's access token now",
				Flags:  []cli.Flag{userFlag()},
				Action: r.SpotifyRefresh,
			},
			{
				Name:   "status",
				Usage:  "Show a user's stored Spotify credentials",
				Flags:  []cli.Flag{userFlag()},
				Action: r.SpotifyStatus,
			},
		},
	}
}

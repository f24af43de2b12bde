// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles service credential flows.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "auth",
		Aliases: []string{"login"},
		Usage:   "Connect Spotify and Tidal accounts",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthSpotify,
			},
			{
				Name:  "tidal",
				Usage: "Authenticate with Tidal using the device link flow",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "Print the link code and exit without polling",
					},
				},
				Action: r.AuthTidal,
			},
			{
				Name:  "status",
				Usage: "Show which services are connected",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored credentials for both services",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// syncCommand runs a library sync from the terminal.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync playlists, favorites, albums and followed artists to Tidal",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "playlists",
				Usage: "Sync playlists",
			},
			&cli.BoolFlag{
				Name:  "favorites",
				Usage: "Sync liked tracks",
			},
			&cli.BoolFlag{
				Name:  "albums",
				Usage: "Sync saved albums",
			},
			&cli.BoolFlag{
				Name:  "artists",
				Usage: "Sync followed artists",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Log progress lines instead of the interactive view",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run result as JSON (implies --plain)",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"r"},
				Usage:   "Write a report file (.md, .csv or plain text by extension)",
			},
		},
		Action: r.Sync,
	}
}

// reportCommand renders a saved run result.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Render a saved run result (from 'sync --json') as a report",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "result",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file (.md, .csv or plain text by extension)",
			},
		},
		Action: r.Report,
	}
}

// serveCommand starts the web service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the sync web service",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

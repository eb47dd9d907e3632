// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/likesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "client_id",
			Usage:   "Spotify application client ID",
			Sources: cli.EnvVars("SPOTIFY_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:    "client_secret",
			Usage:   "Spotify application client secret",
			Sources: cli.EnvVars("SPOTIFY_CLIENT_SECRET"),
		},
	}
}

// command builds the root command, which runs a sync.
func (r *Runner) command() *cli.Command {
	flags := append(credentialFlags(),
		configFlag(),
		&cli.StringFlag{
			Name:  "name",
			Usage: "Name of the playlist kept in sync",
			Value: tasks.DefaultPlaylistName,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report the changes without modifying the playlist",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	)

	return &cli.Command{
		Name:     "likesync",
		Usage:    "Keep a Spotify playlist equal to your liked songs and liked albums",
		Version:  "0.1.0",
		Flags:    flags,
		Action:   r.Sync,
		Commands: r.register(),
	}
}

// authCommand runs the OAuth flow and stores the token
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize with Spotify and store the token in the config file",
		Flags:  append(credentialFlags(), configFlag()),
		Action: r.Auth,
	}
}

// historyCommand lists recorded sync runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// setupCommand writes the config file and initializes the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

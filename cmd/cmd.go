// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("ECHO_CONFIG"),
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if missing and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage registered users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "First name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "phone",
						Usage: "Phone number used for notifications",
					},
					&cli.StringFlag{
						Name:  "platform",
						Usage: "Streaming platform (spotify, apple_music)",
						Value: "spotify",
					},
					&cli.BoolFlag{
						Name:  "onboarded",
						Usage: "Mark onboarding as complete",
					},
				},
				Action: r.UsersAdd,
			},
			{
				Name:   "list",
				Usage:  "List registered users",
				Flags:  jsonFlags(),
				Action: r.UsersList,
			},
		},
	}
}

func friendsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "friends",
		Usage: "Manage the friend graph",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Connect two users as friends",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "friend",
						Aliases:  []string{"f"},
						Usage:    "Friend's user ID",
						Required: true,
					},
				},
				Action: r.FriendsAdd,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Link streaming accounts",
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Authorize a user's platform account using OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID",
						Required: true,
					},
				},
				Action: r.AuthLink,
			},
		},
	}
}

func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Submission session operations",
		Commands: []*cli.Command{
			{
				Name:   "open",
				Usage:  "Open today's session and issue submission tokens",
				Flags:  jsonFlags(),
				Action: r.SessionOpen,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Playlist generation",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Build playlists for the most recent closed session",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the run report as CSV to this path",
					},
				),
				Action: r.PlaylistsGenerate,
			},
			{
				Name:  "show",
				Usage: "Show a stored playlist and who shared each track",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Platform playlist ID",
						Required: true,
					},
				),
				Action: r.PlaylistsShow,
			},
		},
	}
}

func onboardingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "onboarding",
		Usage: "User onboarding",
		Commands: []*cli.Command{
			{
				Name:  "complete",
				Usage: "Finish onboarding and send a catch-up playlist",
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID",
						Required: true,
					},
				),
				Action: r.OnboardingComplete,
			},
		},
	}
}

func playsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plays",
		Usage: "Listening history",
		Commands: []*cli.Command{
			{
				Name:   "collect",
				Usage:  "Fetch recently played tracks for every onboarded user",
				Flags:  jsonFlags(),
				Action: r.PlaysCollect,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run scheduled jobs with health and metrics endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-now",
				Usage: "Run the named job once at startup (session, playlists, plays)",
			},
		},
		Action: r.Serve,
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	fmt.Println()
	if err := newApp().Run(os.Args); err != nil {
		fmt.Printf("\n%s\n\n", err)
		os.Exit(1)
	}
	fmt.Println()
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "savings"
	app.Usage = "Terminal client for the savings challenge app"
	app.Commands = []*cli.Command{
		{
			Name:  "login",
			Usage: "Log in with an email address or username",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagLogin,
					Aliases:  []string{"l"},
					Usage:    "Email address or username",
					Required: true,
				},
				&cli.StringFlag{
					Name:     flagPassword,
					Aliases:  []string{"p"},
					Usage:    "Password",
					Required: true,
					EnvVars:  []string{"SAVINGS_PASSWORD"},
				},
				&cli.BoolFlag{
					Name:    flagRemember,
					Aliases: []string{"r"},
					Usage:   "Ask the server for a refresh token",
				},
			},
			Action: login,
		},
		{
			Name:  "register",
			Usage: "Create an account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagFullName, Usage: "Full name", Required: true},
				&cli.StringFlag{Name: flagUsername, Usage: "Username", Required: true},
				&cli.StringFlag{Name: flagEmail, Usage: "Email address", Required: true},
				&cli.StringFlag{
					Name:     flagPassword,
					Aliases:  []string{"p"},
					Usage:    "Password (at least 8 characters)",
					Required: true,
					EnvVars:  []string{"SAVINGS_PASSWORD"},
				},
			},
			Action: register,
		},
		{
			Name:   "logout",
			Usage:  "Log out and forget the stored session",
			Action: logout,
		},
		{
			Name:   "whoami",
			Usage:  "Show the stored session without waiting for the server",
			Action: whoami,
		},
		{
			Name:   "check",
			Usage:  "Validate the stored session against the server",
			Action: check,
		},
		{
			Name:  "notifications",
			Usage: "Fetch notifications once",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagMarkRead,
					Usage: "Mark the notification with this ID as read first",
				},
				&cli.BoolFlag{
					Name:  flagMarkAll,
					Usage: "Mark every notification as read first",
				},
			},
			Action: notifications,
		},
		{
			Name:  "watch",
			Usage: "Poll and listen for notifications until interrupted",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:    flagInterval,
					Aliases: []string{"i"},
					Usage:   "Override the polling interval (e.g. 30s)",
				},
			},
			Action: watch,
		},
		{
			Name:  "logs",
			Usage: "Show recent client log entries",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagID,
					Usage: "Show one entry, with its details, by ID",
				},
				&cli.StringFlag{
					Name:  flagLevel,
					Usage: "Only show entries of this level (INFO, WARN, ERROR)",
				},
				&cli.IntFlag{
					Name:    flagLimit,
					Aliases: []string{"n"},
					Usage:   "Number of entries",
					Value:   20,
				},
			},
			Action: logs,
		},
	}
	return app
}

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"savings-client/internal/dto"
	"savings-client/internal/model"
	"savings-client/pkg/apiclient"
)

func login(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("login requires no arguments")
	}

	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.Session.Login(c.Context, &dto.LoginRequest{
		Login:      c.String(flagLogin),
		Password:   c.String(flagPassword),
		RememberMe: c.Bool(flagRemember),
	})
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return errors.New("login failed: invalid credentials")
		}
		return errors.Wrap(err, "error logging in")
	}

	color.Green("Welcome back, %s!", res.User.FullName)
	if res.User.IsAdmin {
		color.Yellow("This is an admin account. Admin tools live under /admin in the web app.")
	}
	return nil
}

func register(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("register requires no arguments")
	}

	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.Session.Register(c.Context, &dto.RegisterRequest{
		FullName: c.String(flagFullName),
		Username: c.String(flagUsername),
		Email:    c.String(flagEmail),
		Password: c.String(flagPassword),
	})
	if err != nil {
		return errors.Wrap(err, "error registering")
	}

	color.Green("Account %s created. You can log in now.", res.User.Username)
	return nil
}

func logout(c *cli.Context) error {
	if c.Args().Len() != 0 {
		return errors.New("logout requires no arguments")
	}

	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	// Remote revocation failures are logged by the session manager; local
	// state is cleared regardless.
	if err := container.Session.Logout(c.Context); err != nil {
		return errors.Wrap(err, "error clearing local session")
	}

	fmt.Println("Logout was successful.")
	return nil
}

func whoami(c *cli.Context) error {
	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	printSession(container.Session.Initialize(c.Context))
	return nil
}

func check(c *cli.Context) error {
	container, err := getContainer(c)
	if err != nil {
		return err
	}
	defer container.Close()

	container.Session.Initialize(c.Context)
	if _, err := container.Session.RefreshAuth(c.Context); err != nil {
		color.Red("Auth check failed: %s", err)
	}
	printSession(container.Session.Session())
	return nil
}

func printSession(s model.Session) {
	if !s.IsAuthenticated {
		color.Yellow("Not logged in.")
		return
	}

	u := s.User
	fmt.Printf("%s (%s)\n", color.New(color.Bold).Sprint(u.FullName), u.Email)
	if u.Username != "" {
		fmt.Printf("  username: %s\n", u.Username)
	}
	fmt.Printf("  admin:    %t\n", u.IsAdmin)
	fmt.Printf("  premium:  %t\n", u.IsPremium)
	fmt.Printf("  session:  %s\n", s.Phase)
}

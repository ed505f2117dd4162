package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"savings-client/internal/bootstrap"
	"savings-client/internal/config"
	"savings-client/internal/pkg/logger"
)

// getContainer builds the client. Logs go to the log file only so they never
// interleave with command output.
func getContainer(c *cli.Context) (*bootstrap.Container, error) {
	cfg := config.Load()
	log := logger.NewIsolatedLogger(cfg.App.LogFilePath)

	container, err := bootstrap.NewContainer(c.Context, cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing client")
	}
	return container, nil
}

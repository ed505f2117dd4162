package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"savings-client/internal/config"
	"savings-client/internal/pkg/logger"
)

func logs(c *cli.Context) error {
	cfg := config.Load()
	log := logger.NewIsolatedLogger(cfg.App.LogFilePath)

	if id := c.String(flagID); id != "" {
		entry, err := log.GetLogById(id)
		if err != nil {
			return errors.Wrapf(err, "error reading log entry %q", id)
		}
		printLogEntry(c.App.Writer, *entry)
		return nil
	}

	entries, err := log.GetLogs(c.String(flagLevel), c.Int(flagLimit), 0)
	if err != nil {
		return errors.Wrap(err, "error reading log file")
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "No log entries found.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%s %s %-5s %s %s\n", color.HiBlackString(e.Id), e.Timestamp, colorLevel(e.Level), e.Module, e.Message)
	}
	return nil
}

func printLogEntry(w io.Writer, e logger.LogEntry) {
	fmt.Fprintf(w, "ID:        %s\n", e.Id)
	fmt.Fprintf(w, "Time:      %s\n", e.Timestamp)
	fmt.Fprintf(w, "Level:     %s\n", colorLevel(e.Level))
	fmt.Fprintf(w, "Module:    %s\n", e.Module)
	fmt.Fprintf(w, "Message:   %s\n", e.Message)
	if len(e.Details) == 0 {
		return
	}

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Details:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, e.Details[k])
	}
}

func colorLevel(level string) string {
	switch level {
	case "ERROR":
		return color.RedString(level)
	case "WARN":
		return color.YellowString(level)
	}
	return level
}

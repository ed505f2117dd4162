package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"savings-client/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClientLog(t *testing.T) (string, []logger.LogEntry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.log")
	t.Setenv("LOG_FILE_PATH", path)

	l := logger.NewIsolatedLogger(path)
	l.Info("SessionManager", "session restored", nil)
	l.Error("NotificationPoller", "poll failed", map[string]interface{}{"error": "boom", "kind": "network"})
	_ = l.Sync()

	entries, err := l.GetLogs("", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	return path, entries
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"savings"}, args...))
	return out.String(), err
}

func TestLogsListsEntriesWithIDs(t *testing.T) {
	_, entries := writeClientLog(t)

	out, err := runCLI(t, "logs")
	require.NoError(t, err)

	for _, e := range entries {
		assert.Contains(t, out, e.Id)
		assert.Contains(t, out, e.Message)
	}
}

func TestLogsShowsOneEntryByID(t *testing.T) {
	_, entries := writeClientLog(t)
	failed := entries[0]
	require.Equal(t, "poll failed", failed.Message)

	out, err := runCLI(t, "logs", "--id", failed.Id)
	require.NoError(t, err)

	assert.Contains(t, out, "Message:   poll failed")
	assert.Contains(t, out, "Module:    NotificationPoller")
	assert.Contains(t, out, "  error: boom")
	assert.Contains(t, out, "  kind: network")
	assert.NotContains(t, out, "session restored")
}

func TestLogsUnknownID(t *testing.T) {
	writeClientLog(t)

	_, err := runCLI(t, "logs", "--id", "does-not-exist")
	assert.ErrorContains(t, err, "does-not-exist")
}

package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLoggerGetLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l := NewIsolatedLogger(path)

	l.Info("SessionManager", "session restored", map[string]interface{}{"user_id": "1"})
	l.Error("NotificationPoller", "poll failed", map[string]interface{}{"error": "boom"})
	l.Warn("NotificationPoller", "push channel down", nil)
	_ = l.Sync()

	all, err := l.GetLogs("", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "push channel down", all[0].Message, "newest entry first")

	errorsOnly, err := l.GetLogs("ERROR", 10, 0)
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "NotificationPoller", errorsOnly[0].Module)

	found, err := l.GetLogById(errorsOnly[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "poll failed", found.Message)

	page, err := l.GetLogs("", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("Test", "ignored", nil)

	logs, err := l.GetLogs("", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

package notify_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "logs", "vmsnap.log")
	logger, err := notify.New(notify.Config{
		Level:   "info",
		Console: false,
		File:    logFile,
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("snapshot round started")
	logger.Success("snapshot created")
	logger.Failure("snapshot failed")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "snapshot round started")
	assert.Contains(t, content, "snapshot created")
	assert.Contains(t, content, "snapshot failed")
	// Success/Failure 分别落在 info/error 级别
	assert.Contains(t, content, `"level":"info"`)
	assert.Contains(t, content, `"level":"error"`)
}

func TestNewLevelFiltersMessages(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "vmsnap.log")
	logger, err := notify.New(notify.Config{
		Level:   "error",
		Console: false,
		File:    logFile,
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("hidden info")
	logger.Warning("hidden warning")
	logger.Error("visible error")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "hidden info")
	assert.NotContains(t, content, "hidden warning")
	assert.Contains(t, content, "visible error")
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "vmsnap.log")
	logger, err := notify.New(notify.Config{
		Level:   "not-a-level",
		Console: false,
		File:    logFile,
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("info still visible")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "info still visible")
}

func TestNop(t *testing.T) {
	t.Parallel()

	logger := notify.Nop()
	// 所有级别都不应 panic
	logger.Info("a")
	logger.Warning("b")
	logger.Error("c")
	logger.Success("d")
	logger.Failure("e")
	assert.NoError(t, logger.Close())
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := notify.NewRecorder()
	rec.Info("one")
	rec.Warning("two")
	rec.Error("three")
	rec.Success("four")
	rec.Failure("five")

	entries := rec.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, notify.Entry{Level: "info", Message: "one"}, entries[0])
	assert.Equal(t, notify.Entry{Level: "failure", Message: "five"}, entries[4])

	assert.Equal(t, []string{"two"}, rec.Messages("warning"))
	all := rec.Messages("")
	assert.Len(t, all, 5)
	assert.True(t, strings.HasPrefix(all[0], "one"))

	rec.Reset()
	assert.Empty(t, rec.Entries())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewWithoutFile(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

	cfg, err := New("")
	require.NoError(t, err)

	require.Equal(t, []string{"multipass", "virtualbox", "vmware"}, cfg.Platforms())
	require.Equal(t, 7, cfg.SnapshotRetention())
	require.Equal(t, 300*time.Second, cfg.PlatformTimeout("multipass"))
	require.Equal(t, 7, cfg.BackupRetentionCount())
	require.Equal(t, 30, cfg.BackupRetentionDays())
	require.Equal(t, "info", cfg.NotifyLevel())
	require.True(t, cfg.NotifyConsole())
	require.Empty(t, cfg.NotifyFile())
	require.Equal(t, filepath.Join(cfg.DataDir, "backups"), cfg.BackupDestination())
	require.Equal(t, filepath.Join(cfg.DataDir, "scheduler.json"), cfg.SchedulerStatePath())
	require.Equal(t, filepath.Join(cfg.DataDir, "history.db"), cfg.HistoryDBPath())
}

func TestNewWithFile(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

	path := writeConfigFile(t, `
vm:
  platforms:
    - virtualbox
  snapshot_retention: 3
  virtualbox:
    timeout: 60
backup:
  destination: /srv/backups
  retention:
    count: 14
  exclude_patterns:
    - "*.tmp"
    - "node_modules/"
notifications:
  level: warning
  console: false
  file: /var/log/vmsnap.log
`)

	cfg, err := New(path)
	require.NoError(t, err)

	require.Equal(t, []string{"virtualbox"}, cfg.Platforms())
	require.Equal(t, 3, cfg.SnapshotRetention())
	require.Equal(t, 60*time.Second, cfg.PlatformTimeout("virtualbox"))
	require.Equal(t, 300*time.Second, cfg.PlatformTimeout("vmware"))
	require.Equal(t, "/srv/backups", cfg.BackupDestination())
	require.Equal(t, 14, cfg.BackupRetentionCount())
	require.Equal(t, []string{"*.tmp", "node_modules/"}, cfg.ExcludePatterns())
	require.Equal(t, "warning", cfg.NotifyLevel())
	require.False(t, cfg.NotifyConsole())
	require.Equal(t, "/var/log/vmsnap.log", cfg.NotifyFile())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())
	t.Setenv("VMSNAP_BACKUP_DESTINATION", "/mnt/usb/backups")
	t.Setenv("VMSNAP_BACKUP_RETENTION_COUNT", "21")
	t.Setenv("VMSNAP_VM_SNAPSHOT_RETENTION", "2")
	t.Setenv("VMSNAP_LOG_LEVEL", "error")

	path := writeConfigFile(t, `
backup:
  destination: /srv/backups
  retention:
    count: 14
`)

	cfg, err := New(path)
	require.NoError(t, err)

	require.Equal(t, "/mnt/usb/backups", cfg.BackupDestination())
	require.Equal(t, 21, cfg.BackupRetentionCount())
	require.Equal(t, 2, cfg.SnapshotRetention())
	require.Equal(t, "error", cfg.NotifyLevel())
}

func TestEnvOverrideIgnoresBadNumber(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())
	t.Setenv("VMSNAP_BACKUP_RETENTION_COUNT", "not-a-number")

	cfg, err := New("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.BackupRetentionCount())
}

func TestDataDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VMSNAP_DATA_DIR", dir)

	cfg, err := New("")
	require.NoError(t, err)
	require.Equal(t, dir, cfg.DataDir)
}

func TestGetAndSet(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

	cfg, err := New("")
	require.NoError(t, err)

	require.Equal(t, "fallback", cfg.Get("no.such.key", "fallback"))

	cfg.Set("vm.multipass.timeout", 30)
	require.Equal(t, 30*time.Second, cfg.PlatformTimeout("multipass"))

	cfg.Set("backup.retention.count", 5)
	require.Equal(t, 5, cfg.BackupRetentionCount())
}

func TestGetIntConversions(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

	cfg, err := New("")
	require.NoError(t, err)

	cfg.Set("a", int64(9))
	require.Equal(t, 9, cfg.GetInt("a", 0))

	cfg.Set("b", float64(8))
	require.Equal(t, 8, cfg.GetInt("b", 0))

	cfg.Set("c", "7")
	require.Equal(t, 7, cfg.GetInt("c", 0))

	cfg.Set("d", "oops")
	require.Equal(t, 1, cfg.GetInt("d", 1))
}

func TestAddressResolution(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

		cfg, err := New("")
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:7878", cfg.Address)
	})

	t.Run("from config file", func(t *testing.T) {
		t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

		path := writeConfigFile(t, `
daemon:
  listen: 127.0.0.1:9090
`)
		cfg, err := New(path)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:9090", cfg.Address)
	})

	t.Run("env wins over file", func(t *testing.T) {
		t.Setenv("VMSNAP_DATA_DIR", t.TempDir())
		t.Setenv("VMSNAP_ADDRESS", "127.0.0.1:7070")

		path := writeConfigFile(t, `
daemon:
  listen: 127.0.0.1:9090
`)
		cfg, err := New(path)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1:7070", cfg.Address)
	})
}

func TestBadYAMLFails(t *testing.T) {
	t.Setenv("VMSNAP_DATA_DIR", t.TempDir())

	path := writeConfigFile(t, "vm: [unclosed")
	_, err := New(path)
	require.Error(t, err)
}

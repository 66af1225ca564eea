package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// newStorageFixture 构造共享同一备份目录的备份与存储服务
func newStorageFixture(t *testing.T, retentionCount, retentionDays int) (*BackupService, *StorageService, *notify.Recorder, *config.Config) {
	t.Helper()

	dest := t.TempDir()
	yaml := fmt.Sprintf(`
backup:
  destination: %s
  retention:
    count: %d
    days: %d
`, dest, retentionCount, retentionDays)
	cfg := newTestConfig(t, yaml)
	recorder := notify.NewRecorder()

	backups, err := NewBackupService(cfg, recorder)
	require.NoError(t, err)
	storage, err := NewStorageService(cfg, recorder)
	require.NoError(t, err)
	return backups, storage, recorder, cfg
}

// createBackupAt 以固定时间创建一份备份
func createBackupAt(t *testing.T, svc *BackupService, name string, ts time.Time) string {
	t.Helper()

	src := filepath.Join(t.TempDir(), "files")
	writeFileForTest(t, filepath.Join(src, "payload.txt"), "content of "+name)

	svc.now = func() time.Time { return ts }
	backup, err := svc.Create(context.Background(), []string{src}, name)
	require.NoError(t, err)
	return backup.Name
}

func TestListBackupsNewestFirst(t *testing.T) {
	t.Parallel()

	backups, storage, _, _ := newStorageFixture(t, 7, 30)
	oldest := createBackupAt(t, backups, "alpha", fixedClock.Add(-48*time.Hour))
	middle := createBackupAt(t, backups, "bravo", fixedClock.Add(-24*time.Hour))
	newest := createBackupAt(t, backups, "charlie", fixedClock)

	listed := storage.ListBackups(context.Background())

	require.Len(t, listed, 3)
	assert.Equal(t, newest, listed[0].Name)
	assert.Equal(t, middle, listed[1].Name)
	assert.Equal(t, oldest, listed[2].Name)
}

func TestListBackupsDegradedMetadata(t *testing.T) {
	t.Parallel()

	backups, storage, recorder, _ := newStorageFixture(t, 7, 30)
	createBackupAt(t, backups, "good", fixedClock)

	// 旁车文件损坏：退化为文件系统信息
	corrupt := filepath.Join(backups.Destination(), "corrupt_20260820_000000.tar.gz")
	writeFileForTest(t, corrupt, "fake archive bytes")
	writeFileForTest(t, corrupt+".meta.json", "{ not json")

	// 旁车文件缺失：跳过并警告
	orphan := filepath.Join(backups.Destination(), "orphan_20260819_000000.tar.gz")
	writeFileForTest(t, orphan, "fake archive bytes")

	listed := storage.ListBackups(context.Background())

	require.Len(t, listed, 2)
	names := []string{listed[0].Name, listed[1].Name}
	assert.Contains(t, names, "good_20260825_143005")
	assert.Contains(t, names, "corrupt_20260820_000000")

	warnings := recorder.Messages("warning")
	assert.Contains(t, warnings, "Metadata file missing for: orphan_20260819_000000.tar.gz")
	assert.Contains(t, warnings, fmt.Sprintf("Invalid metadata file: %s", corrupt+".meta.json"))
}

func TestGetBackup(t *testing.T) {
	t.Parallel()

	backups, storage, _, _ := newStorageFixture(t, 7, 30)
	name := createBackupAt(t, backups, "alpha", fixedClock)

	found, err := storage.GetBackup(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, name, found.Name)

	_, err = storage.GetBackup(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, vmerror.ErrNotFound)
}

func TestCleanupOldBackups(t *testing.T) {
	t.Parallel()

	t.Run("KeepsNewestByCount", func(t *testing.T) {
		t.Parallel()

		backups, storage, _, _ := newStorageFixture(t, 2, 365)
		oldest := createBackupAt(t, backups, "alpha", fixedClock.Add(-72*time.Hour))
		createBackupAt(t, backups, "bravo", fixedClock.Add(-48*time.Hour))
		createBackupAt(t, backups, "charlie", fixedClock.Add(-24*time.Hour))
		storage.now = func() time.Time { return fixedClock }

		summary := storage.CleanupOldBackups(context.Background())

		assert.Equal(t, 3, summary.TotalBackups)
		assert.Equal(t, 1, summary.Deleted)
		assert.Equal(t, 2, summary.Kept)
		assert.Greater(t, summary.DeletedBytes, int64(0))
		assert.Empty(t, summary.Errors)

		remaining := storage.ListBackups(context.Background())
		require.Len(t, remaining, 2)
		for _, b := range remaining {
			assert.NotEqual(t, oldest, b.Name)
		}
	})

	t.Run("DropsExpiredByAge", func(t *testing.T) {
		t.Parallel()

		backups, storage, recorder, _ := newStorageFixture(t, 10, 30)
		expired := createBackupAt(t, backups, "ancient", fixedClock.Add(-45*24*time.Hour))
		fresh := createBackupAt(t, backups, "fresh", fixedClock.Add(-time.Hour))
		storage.now = func() time.Time { return fixedClock }

		summary := storage.CleanupOldBackups(context.Background())

		assert.Equal(t, 1, summary.Deleted)
		assert.Equal(t, 1, summary.Kept)

		remaining := storage.ListBackups(context.Background())
		require.Len(t, remaining, 1)
		assert.Equal(t, fresh, remaining[0].Name)
		assert.Contains(t, recorder.Messages("info"), "Deleted expired backup: "+expired)
	})

	t.Run("DeleteFailureToleratedAndCounted", func(t *testing.T) {
		t.Parallel()

		backups, storage, _, _ := newStorageFixture(t, 1, 365)
		createBackupAt(t, backups, "keep", fixedClock)
		storage.now = func() time.Time { return fixedClock }

		// 非空目录冒充归档文件，删除时必然失败
		stubborn := filepath.Join(backups.Destination(), "stuck_20250101_000000.tar.gz")
		writeFileForTest(t, filepath.Join(stubborn, "inner.txt"), "blocks removal")
		meta := fmt.Sprintf(`{"name":"stuck_20250101_000000","created_at":%q}`,
			fixedClock.Add(-400*24*time.Hour).Format(time.RFC3339))
		writeFileForTest(t, stubborn+".meta.json", meta)

		summary := storage.CleanupOldBackups(context.Background())

		assert.Equal(t, 2, summary.TotalBackups)
		assert.Equal(t, 0, summary.Deleted)
		require.NotEmpty(t, summary.Errors)
		assert.Contains(t, summary.Errors[0], "stuck_20250101_000000")

		// 失败之外的备份照常保留
		assert.Len(t, storage.ListBackups(context.Background()), 2)
	})
}

func TestRestore(t *testing.T) {
	t.Parallel()

	t.Run("FullRestore", func(t *testing.T) {
		t.Parallel()

		backups, storage, _, _ := newStorageFixture(t, 7, 30)

		src := filepath.Join(t.TempDir(), "files")
		writeFileForTest(t, filepath.Join(src, "a.txt"), "alpha")
		writeFileForTest(t, filepath.Join(src, "sub", "b.txt"), "bravo")
		backup, err := backups.Create(context.Background(), []string{src}, "full")
		require.NoError(t, err)

		dest := t.TempDir()
		restored, err := storage.Restore(context.Background(), backup.Name, dest, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, restored)
		assert.FileExists(t, filepath.Join(dest, "files", "a.txt"))
		assert.FileExists(t, filepath.Join(dest, "files", "sub", "b.txt"))
	})

	t.Run("PatternRestore", func(t *testing.T) {
		t.Parallel()

		backups, storage, _, _ := newStorageFixture(t, 7, 30)

		src := filepath.Join(t.TempDir(), "files")
		writeFileForTest(t, filepath.Join(src, "a.txt"), "alpha")
		writeFileForTest(t, filepath.Join(src, "b.csv"), "1,2")
		backup, err := backups.Create(context.Background(), []string{src}, "partial")
		require.NoError(t, err)

		dest := t.TempDir()
		restored, err := storage.Restore(context.Background(), backup.Name, dest, []string{".csv"})
		require.NoError(t, err)
		assert.Equal(t, 1, restored)
		assert.FileExists(t, filepath.Join(dest, "files", "b.csv"))
		assert.NoFileExists(t, filepath.Join(dest, "files", "a.txt"))
	})

	t.Run("NoPatternMatchFails", func(t *testing.T) {
		t.Parallel()

		backups, storage, recorder, _ := newStorageFixture(t, 7, 30)

		src := filepath.Join(t.TempDir(), "files")
		writeFileForTest(t, filepath.Join(src, "a.txt"), "alpha")
		backup, err := backups.Create(context.Background(), []string{src}, "miss")
		require.NoError(t, err)

		_, err = storage.Restore(context.Background(), backup.Name, t.TempDir(), []string{"nope"})
		require.Error(t, err)
		assert.Contains(t, recorder.Messages("warning"), "No files matched the specified patterns")
	})
}

func TestVerifyBackupDeep(t *testing.T) {
	t.Parallel()

	backups, storage, recorder, _ := newStorageFixture(t, 7, 30)

	src := filepath.Join(t.TempDir(), "files")
	writeFileForTest(t, filepath.Join(src, "a.txt"), "alpha")
	backup, err := backups.Create(context.Background(), []string{src}, "verified")
	require.NoError(t, err)

	require.NoError(t, storage.VerifyBackup(context.Background(), backup.Name))
	infos := recorder.Messages("info")
	assert.Contains(t, infos, "Checksum verification passed")
	assert.Contains(t, recorder.Messages("success"),
		"Backup verification completed successfully: "+backup.Name)

	// 篡改归档后校验失败
	f, err := os.OpenFile(backup.Path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("tamper")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = storage.VerifyBackup(context.Background(), backup.Name)
	require.Error(t, err)
	assert.Contains(t, recorder.Messages("failure"), "Checksum verification failed for "+backup.Name)
}

func TestBackupContents(t *testing.T) {
	t.Parallel()

	backups, storage, _, _ := newStorageFixture(t, 7, 30)

	src := filepath.Join(t.TempDir(), "files")
	writeFileForTest(t, filepath.Join(src, "z.txt"), "zulu")
	writeFileForTest(t, filepath.Join(src, "a.txt"), "alpha")
	backup, err := backups.Create(context.Background(), []string{src}, "contents")
	require.NoError(t, err)

	entries, err := storage.Contents(context.Background(), backup.Name)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// 按名称排序
	assert.Equal(t, "files/a.txt", entries[0].Name)
	assert.Equal(t, "files/z.txt", entries[1].Name)
	assert.Equal(t, "file", entries[0].Type)
}

func TestStorageStatus(t *testing.T) {
	t.Parallel()

	t.Run("CountsAndDiskMetrics", func(t *testing.T) {
		t.Parallel()

		backups, storage, _, _ := newStorageFixture(t, 7, 30)
		createBackupAt(t, backups, "alpha", fixedClock)

		status := storage.Status(context.Background())

		assert.Equal(t, 1, status.BackupCount)
		assert.Greater(t, status.TotalSizeBytes, int64(0))
		assert.Greater(t, status.DiskTotalBytes, uint64(0))
		assert.Empty(t, status.Alerts)
	})

	t.Run("AlertsWhenOverThresholds", func(t *testing.T) {
		t.Parallel()

		dest := t.TempDir()
		yaml := fmt.Sprintf(`
backup:
  destination: %s
monitoring:
  max_backup_size_gb: 0
  alert_threshold_gb: 0
`, dest)
		cfg := newTestConfig(t, yaml)
		recorder := notify.NewRecorder()
		backups, err := NewBackupService(cfg, recorder)
		require.NoError(t, err)
		storage, err := NewStorageService(cfg, recorder)
		require.NoError(t, err)

		createBackupAt(t, backups, "alpha", fixedClock)

		status := storage.Status(context.Background())

		require.Len(t, status.Alerts, 2)
		assert.Contains(t, status.Alerts[0], "Storage usage above threshold")
		assert.Contains(t, status.Alerts[1], "Storage usage above maximum")
		assert.NotEmpty(t, recorder.Messages("warning"))
	})
}

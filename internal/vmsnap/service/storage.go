package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/pkg/archive"
	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// StorageService 备份存储的保留、清理与恢复
type StorageService struct {
	cfg      *config.Config
	notifier notify.Notifier
	dest     string
	now      func() time.Time
}

// NewStorageService 创建存储服务并确保备份目录存在
func NewStorageService(cfg *config.Config, notifier notify.Notifier) (*StorageService, error) {
	dest := cfg.BackupDestination()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create backup destination: %w", err)
	}

	return &StorageService{
		cfg:      cfg,
		notifier: notifier,
		dest:     dest,
		now:      time.Now,
	}, nil
}

// ListBackups 扫描备份目录下的归档及其旁车文件，按创建时间倒序返回
// 旁车文件损坏时退化为文件系统信息，缺失时跳过并警告
func (s *StorageService) ListBackups(ctx context.Context) []entity.Backup {
	matches, err := filepath.Glob(filepath.Join(s.dest, "*.tar.gz"))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to scan backup directory")
		return nil
	}

	backups := make([]entity.Backup, 0, len(matches))
	for _, archivePath := range matches {
		info, err := os.Stat(archivePath)
		if err != nil {
			continue
		}

		metaPath := archivePath + ".meta.json"
		meta, err := readBackupMetadata(metaPath)
		switch {
		case err == nil:
			backups = append(backups, entity.Backup{
				Name:       meta.Name,
				Path:       archivePath,
				SizeBytes:  info.Size(),
				CreatedAt:  meta.CreatedAt,
				Checksum:   meta.Checksum,
				Sources:    meta.Sources,
				FilesCount: meta.FilesCount,
			})
		case os.IsNotExist(err):
			s.notifier.Warning(fmt.Sprintf("Metadata file missing for: %s", filepath.Base(archivePath)))
		default:
			s.notifier.Warning(fmt.Sprintf("Invalid metadata file: %s", metaPath))
			backups = append(backups, entity.Backup{
				Name:      strings.TrimSuffix(filepath.Base(archivePath), ".tar.gz"),
				Path:      archivePath,
				SizeBytes: info.Size(),
				CreatedAt: info.ModTime(),
			})
		}
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups
}

// GetBackup 按备份名称查找
func (s *StorageService) GetBackup(ctx context.Context, name string) (*entity.Backup, error) {
	for _, b := range s.ListBackups(ctx) {
		if b.Name == name {
			return &b, nil
		}
	}

	s.notifier.Error(fmt.Sprintf("Backup not found: %s", name))
	return nil, vmerror.WrapError(vmerror.ErrNotFound, fmt.Sprintf("backup %s not found", name), nil)
}

// CleanupOldBackups 按保留策略清理：先保留最新 N 份，再删除超过保留天数的
// 单个删除失败记入 errors 并继续，不会中断整个清理
func (s *StorageService) CleanupOldBackups(ctx context.Context) *entity.BackupCleanupSummary {
	s.notifier.Info("Starting backup cleanup...")

	retentionCount := s.cfg.BackupRetentionCount()
	retentionDays := s.cfg.BackupRetentionDays()

	backups := s.ListBackups(ctx)
	summary := &entity.BackupCleanupSummary{TotalBackups: len(backups)}
	deleted := make(map[string]bool, len(backups))

	// 列表是新到旧，按数量清理保留前 retentionCount 份
	if len(backups) > retentionCount {
		for _, b := range backups[retentionCount:] {
			if err := s.deleteBackupFiles(&b); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("Failed to delete: %s", b.Name))
				s.notifier.Error(fmt.Sprintf("Error deleting %s: %v", b.Name, err))
				continue
			}
			deleted[b.Name] = true
			summary.Deleted++
			summary.DeletedBytes += b.SizeBytes
			s.notifier.Info(fmt.Sprintf("Deleted old backup: %s", b.Name))
		}
	}

	// 按时间清理，跳过已经删除的
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	for _, b := range backups {
		if deleted[b.Name] || !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.deleteBackupFiles(&b); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Failed to delete expired: %s", b.Name))
			s.notifier.Error(fmt.Sprintf("Error deleting %s: %v", b.Name, err))
			continue
		}
		deleted[b.Name] = true
		summary.Deleted++
		summary.DeletedBytes += b.SizeBytes
		s.notifier.Info(fmt.Sprintf("Deleted expired backup: %s", b.Name))
	}

	summary.Kept = summary.TotalBackups - summary.Deleted
	s.notifier.Success(fmt.Sprintf("Cleanup completed: deleted %d backups (%s), kept %d",
		summary.Deleted, humanize.IBytes(uint64(summary.DeletedBytes)), summary.Kept))
	return summary
}

// deleteBackupFiles 删除归档及其旁车文件，文件不存在不算错误
func (s *StorageService) deleteBackupFiles(b *entity.Backup) error {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove archive: %w", err)
	}
	if err := os.Remove(b.Path + ".meta.json"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}

// Restore 将备份提取到 restorePath
// patterns 非空时只提取名称包含任一模式的成员，没有命中时报错
func (s *StorageService) Restore(ctx context.Context, name, restorePath string, patterns []string) (int, error) {
	backup, err := s.GetBackup(ctx, name)
	if err != nil {
		return 0, err
	}

	s.notifier.Info(fmt.Sprintf("Restoring backup %s to %s", name, restorePath))

	extracted, err := archive.Extract(backup.Path, restorePath, patterns)
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Error restoring backup: %v", err))
		return extracted, fmt.Errorf("restore backup %s: %w", name, err)
	}

	if len(patterns) > 0 {
		if extracted == 0 {
			s.notifier.Warning("No files matched the specified patterns")
			return 0, fmt.Errorf("no files matched the specified patterns")
		}
		s.notifier.Success(fmt.Sprintf("Restored %d files", extracted))
		return extracted, nil
	}

	s.notifier.Success(fmt.Sprintf("Restored all files (%d items)", extracted))
	return extracted, nil
}

// VerifyBackup 校验备份完整性：比对校验和并试读归档成员
func (s *StorageService) VerifyBackup(ctx context.Context, name string) error {
	backup, err := s.GetBackup(ctx, name)
	if err != nil {
		return err
	}

	s.notifier.Info(fmt.Sprintf("Verifying backup: %s", name))

	if backup.Checksum != "" {
		checksum, err := archive.SHA256(backup.Path)
		if err != nil {
			s.notifier.Error(fmt.Sprintf("Error verifying backup: %v", err))
			return fmt.Errorf("checksum backup archive: %w", err)
		}
		if checksum != backup.Checksum {
			s.notifier.Failure(fmt.Sprintf("Checksum verification failed for %s", name))
			return fmt.Errorf("checksum mismatch for %s", name)
		}
		s.notifier.Info("Checksum verification passed")
	}

	members, err := archive.Verify(backup.Path)
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Tar file verification failed: %v", err))
		return fmt.Errorf("verify backup archive: %w", err)
	}
	s.notifier.Info(fmt.Sprintf("Tar file contains %d members", members))

	s.notifier.Success(fmt.Sprintf("Backup verification completed successfully: %s", name))
	return nil
}

// Contents 列出备份归档的成员，按名称排序
func (s *StorageService) Contents(ctx context.Context, name string) ([]archive.Entry, error) {
	backup, err := s.GetBackup(ctx, name)
	if err != nil {
		return nil, err
	}

	entries, err := archive.List(backup.Path)
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Error listing backup contents: %v", err))
		return nil, fmt.Errorf("list backup contents: %w", err)
	}
	return entries, nil
}

// Status 返回备份目录的使用状况和容量告警
func (s *StorageService) Status(ctx context.Context) *entity.StorageStatus {
	backups := s.ListBackups(ctx)

	status := &entity.StorageStatus{
		Path:        s.dest,
		BackupCount: len(backups),
	}
	for _, b := range backups {
		status.TotalSizeBytes += b.SizeBytes
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(s.dest, &fs); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", s.dest).Msg("Failed to read filesystem stats")
	} else {
		blockSize := uint64(fs.Bsize)
		status.DiskTotalBytes = fs.Blocks * blockSize
		status.DiskFreeBytes = fs.Bavail * blockSize
		status.DiskUsedBytes = status.DiskTotalBytes - fs.Bfree*blockSize
		if status.DiskTotalBytes > 0 {
			status.UsagePercent = float64(status.DiskUsedBytes) / float64(status.DiskTotalBytes) * 100
		}
	}

	// 告警针对目录实际占用，包含旁车文件等所有内容
	dirSize := uint64(directorySize(s.dest))
	const gb = 1 << 30
	thresholdBytes := uint64(s.cfg.AlertThresholdGB()) * gb
	maxBytes := uint64(s.cfg.MaxBackupSizeGB()) * gb

	if dirSize > thresholdBytes {
		status.Alerts = append(status.Alerts, fmt.Sprintf("Storage usage above threshold: %s > %s",
			humanize.IBytes(dirSize), humanize.IBytes(thresholdBytes)))
	}
	if dirSize > maxBytes {
		status.Alerts = append(status.Alerts, fmt.Sprintf("Storage usage above maximum: %s > %s",
			humanize.IBytes(dirSize), humanize.IBytes(maxBytes)))
	}
	for _, alert := range status.Alerts {
		s.notifier.Warning(alert)
	}

	return status
}

// directorySize 目录下普通文件的总字节数
func directorySize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

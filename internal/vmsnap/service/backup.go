package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/pkg/archive"
	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// BackupService 文件备份服务
// 每个归档都伴随一个 <archive>.meta.json 旁车文件，两者同生共死
type BackupService struct {
	cfg      *config.Config
	notifier notify.Notifier
	dest     string
	now      func() time.Time
}

// NewBackupService 创建备份服务并确保目标目录存在
func NewBackupService(cfg *config.Config, notifier notify.Notifier) (*BackupService, error) {
	dest := cfg.BackupDestination()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create backup destination: %w", err)
	}

	return &BackupService{
		cfg:      cfg,
		notifier: notifier,
		dest:     dest,
		now:      time.Now,
	}, nil
}

// Destination 返回备份目标目录
func (s *BackupService) Destination() string {
	return s.dest
}

// Create 将 sources 打包为带时间戳的 tar.gz 归档并写入元数据旁车文件
// 不存在的来源路径跳过并警告，全部无效时报错；失败时清理残留文件
func (s *BackupService) Create(ctx context.Context, sources []string, name string) (*entity.Backup, error) {
	s.notifier.Info("Starting backup operation...")

	base := "backup"
	if name != "" {
		base = name
	}
	filename := fmt.Sprintf("%s_%s.tar.gz", base, s.now().Format("20060102_150405"))
	archivePath := filepath.Join(s.dest, filename)
	metaPath := archivePath + ".meta.json"

	valid := make([]string, 0, len(sources))
	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				valid = append(valid, abs)
				s.notifier.Info(fmt.Sprintf("Added source: %s", abs))
				continue
			}
		}
		s.notifier.Warning(fmt.Sprintf("Source path not found: %s", src))
	}
	if len(valid) == 0 {
		s.notifier.Failure("No valid source paths found")
		return nil, fmt.Errorf("no valid source paths provided")
	}

	s.notifier.Info(fmt.Sprintf("Creating backup: %s", filename))

	processed := 0
	stats, err := archive.Create(archivePath, valid, archive.Options{
		Excludes: s.cfg.ExcludePatterns(),
		OnFile: func(string) {
			processed++
			if processed%100 == 0 {
				s.notifier.Info(fmt.Sprintf("Processed %d files...", processed))
			}
		},
	})
	if err != nil {
		s.notifier.Failure(fmt.Sprintf("Backup failed: %v", err))
		_ = os.Remove(metaPath)
		return nil, fmt.Errorf("create backup archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		s.notifier.Failure(fmt.Sprintf("Backup failed: %v", err))
		return nil, fmt.Errorf("stat backup archive: %w", err)
	}

	checksum, err := archive.SHA256(archivePath)
	if err != nil {
		s.notifier.Failure(fmt.Sprintf("Backup failed: %v", err))
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("checksum backup archive: %w", err)
	}

	meta := &entity.BackupMetadata{
		Name:        strings.TrimSuffix(filename, ".tar.gz"),
		CreatedAt:   s.now(),
		Sources:     valid,
		SizeBytes:   info.Size(),
		FilesCount:  stats.FilesCount,
		Checksum:    checksum,
		Compression: "gzip",
	}
	if err = writeBackupMetadata(metaPath, meta); err != nil {
		s.notifier.Failure(fmt.Sprintf("Backup failed: %v", err))
		_ = os.Remove(archivePath)
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", metaPath).Msg("Metadata saved")

	ratio := 0.0
	if stats.TotalSize > 0 {
		ratio = (1 - float64(info.Size())/float64(stats.TotalSize)) * 100
	}
	s.notifier.Success(fmt.Sprintf("Backup created successfully: %s (%s, %.1f%% compression)",
		filename, humanize.IBytes(uint64(info.Size())), ratio))

	return &entity.Backup{
		Name:       meta.Name,
		Path:       archivePath,
		SizeBytes:  meta.SizeBytes,
		CreatedAt:  meta.CreatedAt,
		Checksum:   meta.Checksum,
		Sources:    meta.Sources,
		FilesCount: meta.FilesCount,
	}, nil
}

// Verify 重新计算归档校验和并与元数据比对
// filename 是备份目录下的归档文件名
func (s *BackupService) Verify(_ context.Context, filename string) error {
	archivePath := filepath.Join(s.dest, filename)
	metaPath := archivePath + ".meta.json"

	if _, err := os.Stat(archivePath); err != nil {
		s.notifier.Error(fmt.Sprintf("Backup file not found: %s", filename))
		return vmerror.WrapError(vmerror.ErrNotFound, fmt.Sprintf("backup file %s not found", filename), err)
	}

	meta, err := readBackupMetadata(metaPath)
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Metadata file not found: %s.meta.json", filename))
		return fmt.Errorf("read backup metadata: %w", err)
	}

	checksum, err := archive.SHA256(archivePath)
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Backup verification error: %v", err))
		return fmt.Errorf("checksum backup archive: %w", err)
	}

	if checksum != meta.Checksum {
		s.notifier.Failure(fmt.Sprintf("Backup verification failed: %s (checksum mismatch)", filename))
		return fmt.Errorf("checksum mismatch for %s", filename)
	}

	s.notifier.Success(fmt.Sprintf("Backup verification successful: %s", filename))
	return nil
}

// writeBackupMetadata 先写临时文件再重命名，保证旁车文件完整可读
func writeBackupMetadata(path string, meta *entity.BackupMetadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename backup metadata: %w", err)
	}
	return nil
}

// readBackupMetadata 读取并解析元数据旁车文件
func readBackupMetadata(path string) (*entity.BackupMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta := &entity.BackupMetadata{}
	if err = json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("parse backup metadata %s: %w", path, err)
	}
	return meta, nil
}

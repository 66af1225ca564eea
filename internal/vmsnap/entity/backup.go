package entity

import "time"

// BackupMetadata 归档旁车文件（<archive>.meta.json）的内容
type BackupMetadata struct {
	Name        string    `json:"name"`        // 备份名称
	CreatedAt   time.Time `json:"created_at"`  // 创建时间
	Sources     []string  `json:"sources"`     // 备份来源路径
	SizeBytes   int64     `json:"size_bytes"`  // 归档文件大小
	FilesCount  int       `json:"files_count"` // 归档内文件数量
	Checksum    string    `json:"checksum"`    // 归档 SHA-256 校验和
	Compression string    `json:"compression"` // 压缩方式
}

// Backup 一个已存在的备份归档及其元数据
type Backup struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
	FilesCount int       `json:"files_count,omitempty"`
}

// BackupCleanupSummary 备份清理的汇总结果
type BackupCleanupSummary struct {
	TotalBackups int      `json:"total_backups"` // 清理前的备份总数
	Deleted      int      `json:"deleted"`       // 删除的备份数量
	DeletedBytes int64    `json:"deleted_bytes"` // 释放的空间
	Kept         int      `json:"kept"`          // 保留的备份数量
	Errors       []string `json:"errors"`
}

// StorageStatus 备份存储目录的使用状况
type StorageStatus struct {
	Path           string   `json:"path"`             // 备份目录
	BackupCount    int      `json:"backup_count"`     // 备份数量
	TotalSizeBytes int64    `json:"total_size"`       // 备份占用的空间
	DiskTotalBytes uint64   `json:"disk_total"`       // 所在磁盘总容量
	DiskUsedBytes  uint64   `json:"disk_used"`        // 所在磁盘已用容量
	DiskFreeBytes  uint64   `json:"disk_free"`        // 所在磁盘剩余容量
	UsagePercent   float64  `json:"usage_percent"`    // 磁盘使用率
	Alerts         []string `json:"alerts,omitempty"` // 容量告警
}

// ListBackupsRequest 列举备份请求
type ListBackupsRequest struct{}

type ListBackupsResponse struct {
	Backups []Backup `json:"backups"`
}

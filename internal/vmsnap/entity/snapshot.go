package entity

import (
	"strings"
	"time"
)

// SnapshotKind 快照来源分类，由名称前缀推断
type SnapshotKind string

const (
	SnapshotKindAutomatic SnapshotKind = "automatic" // 调度器自动创建
	SnapshotKindManaged   SnapshotKind = "managed"   // 手动触发、由本工具命名
	SnapshotKindManual    SnapshotKind = "manual"    // 用户在平台上自行创建
)

// 本工具保留的快照名称前缀，清理只处理带这些前缀的快照
const (
	SnapshotPrefixAuto    = "auto"   // 自动快照
	SnapshotPrefixManaged = "vmsnap" // 默认手动快照
	SnapshotPrefixLegacy  = "backup" // 兼容早期版本的命名
)

// Snapshot 快照信息，每次列举时重新查询，不做缓存
type Snapshot struct {
	Name        string       `json:"name"`                  // 快照名称，同一虚拟机内唯一
	VMName      string       `json:"vm_name"`               // 所属虚拟机名称
	Platform    Platform     `json:"platform"`              // 所属平台
	CreatedAt   *time.Time   `json:"created_at,omitempty"`  // 创建时间，解析失败时为空
	Kind        SnapshotKind `json:"kind"`                  // 来源分类
	Description string       `json:"description,omitempty"` // 平台侧描述文本（VirtualBox）
}

// KindOfSnapshot 根据名称前缀推断快照来源
func KindOfSnapshot(name string) SnapshotKind {
	switch {
	case hasPrefixToken(name, SnapshotPrefixAuto):
		return SnapshotKindAutomatic
	case hasPrefixToken(name, SnapshotPrefixManaged), hasPrefixToken(name, SnapshotPrefixLegacy):
		return SnapshotKindManaged
	default:
		return SnapshotKindManual
	}
}

// IsManagedSnapshotName 判断快照是否由本工具创建
func IsManagedSnapshotName(name string) bool {
	return KindOfSnapshot(name) != SnapshotKindManual
}

// hasPrefixToken 判断名称是否为 prefix 本身或以 prefix 加分隔符开头，
// 避免 "autumn" 被误判为 "auto" 前缀
func hasPrefixToken(name, prefix string) bool {
	if name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix+"-") || strings.HasPrefix(name, prefix+"_")
}

// SnapshotNameStyle 快照命名风格，由平台的名称字符集限制决定
type SnapshotNameStyle string

const (
	SnapshotNameStyleHyphen     SnapshotNameStyle = "hyphen"     // 连字符分隔，适用于字符集受限的平台
	SnapshotNameStyleUnderscore SnapshotNameStyle = "underscore" // 下划线分隔
)

// Separator 返回该风格使用的分隔符
func (s SnapshotNameStyle) Separator() string {
	if s == SnapshotNameStyleUnderscore {
		return "_"
	}
	return "-"
}

// Timestamp 返回该风格的时间戳片段
func (s SnapshotNameStyle) Timestamp(t time.Time) string {
	if s == SnapshotNameStyleUnderscore {
		return t.Format("20060102_150405")
	}
	return t.Format("20060102-150405")
}

// ManagedSnapshotName 按指定风格生成默认的手动快照名称
func ManagedSnapshotName(style SnapshotNameStyle, t time.Time) string {
	return SnapshotPrefixManaged + style.Separator() + style.Timestamp(t)
}

// AutoSnapshotName 按指定风格生成自动快照名称
func AutoSnapshotName(style SnapshotNameStyle, t time.Time) string {
	return SnapshotPrefixAuto + style.Separator() + style.Timestamp(t)
}

// ListSnapshotsRequest 列举快照请求
type ListSnapshotsRequest struct {
	VMName   string `json:"vm_name" binding:"required"` // 虚拟机名称
	Platform string `json:"platform,omitempty"`         // 平台提示，留空表示自动解析
}

type ListSnapshotsResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// CreateSnapshotRequest 创建快照请求
type CreateSnapshotRequest struct {
	VMName       string `json:"vm_name" binding:"required"` // 虚拟机名称
	Platform     string `json:"platform,omitempty"`         // 平台提示，留空表示自动解析
	SnapshotName string `json:"snapshot_name,omitempty"`    // 快照名称，留空时按平台风格生成
}

type CreateSnapshotResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// DeleteSnapshotRequest 删除快照请求
// 默认彻底删除，NoPurge 为 true 时只做软删除
type DeleteSnapshotRequest struct {
	VMName       string `json:"vm_name" binding:"required"`
	Platform     string `json:"platform,omitempty"`
	SnapshotName string `json:"snapshot_name" binding:"required"`
	NoPurge      bool   `json:"no_purge,omitempty"`
}

type DeleteSnapshotResponse struct {
	Message string `json:"message"`
}

// DeleteAllSnapshotsRequest 删除虚拟机全部快照请求
type DeleteAllSnapshotsRequest struct {
	VMName   string `json:"vm_name" binding:"required"`
	Platform string `json:"platform,omitempty"`
	NoPurge  bool   `json:"no_purge,omitempty"`
}

type DeleteAllSnapshotsResponse struct {
	Deleted int `json:"deleted"` // 成功删除的快照数量
}

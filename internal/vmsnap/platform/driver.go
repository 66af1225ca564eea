// Package platform 适配各虚拟化平台的命令行控制面
//
// 每个驱动无状态，列举结果每次实时查询。面向单台虚拟机的操作
// （创建、删除快照）以布尔值上报结果，失败时记录一条诊断日志，
// 从不向调用方抛出错误。
package platform

import (
	"context"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

// Driver 单个虚拟化平台的适配器
type Driver interface {
	// Platform 返回平台标识
	Platform() entity.Platform
	// NameStyle 返回该平台快照名称使用的分隔风格
	NameStyle() entity.SnapshotNameStyle
	// IsAvailable 检查平台命令行工具是否安装，纯探测，无副作用
	IsAvailable() bool
	// ListVMs 列举虚拟机，平台出错时记录日志并返回空列表
	ListVMs(ctx context.Context) []entity.VirtualMachine
	// CreateSnapshot 创建快照，任何失败都返回 false
	CreateSnapshot(ctx context.Context, vmName, snapshotName string) bool
	// ListSnapshots 列举快照，个别字段解析失败时降级为未知而不是整体失败
	ListSnapshots(ctx context.Context, vmName string) []entity.Snapshot
	// DeleteSnapshot 删除快照；purge 为 true 时一步彻底删除，
	// 为 false 时执行软删除，空间回收留待平台的后续回收步骤
	DeleteSnapshot(ctx context.Context, vmName, snapshotName string, purge bool) bool
	// DeleteAllSnapshots 删除全部快照，单个失败不中断，返回成功数量
	DeleteAllSnapshots(ctx context.Context, vmName string, purge bool) int
}

// SnapshotCleaner 平台自定义清理能力
// 实现了该接口的驱动以自己的清理逻辑替代通用保留算法
type SnapshotCleaner interface {
	CleanupOldSnapshots(ctx context.Context, vmName string, retention int) int
}

// deleteAllSnapshots 逐个删除虚拟机的所有快照，返回成功数量
func deleteAllSnapshots(ctx context.Context, d Driver, vmName string, purge bool) int {
	deleted := 0
	for _, snap := range d.ListSnapshots(ctx, vmName) {
		if d.DeleteSnapshot(ctx, vmName, snap.Name, purge) {
			deleted++
		}
	}
	return deleted
}

// Package service 提供业务逻辑层的服务实现
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/platform"
	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// VMService 跨平台的虚拟机与快照管理
// 可用驱动集合在构造时探测一次，之后不可变；重新探测需要重建服务
type VMService struct {
	cfg      *config.Config
	notifier notify.Notifier
	drivers  []platform.Driver
	now      func() time.Time
}

// NewVMService 创建 VM 服务
// 按配置的平台顺序探测 candidates 中的驱动，只保留命令行工具可用的；
// 一个可用平台都没有是合法状态，只发出警告
func NewVMService(ctx context.Context, cfg *config.Config, notifier notify.Notifier, candidates []platform.Driver) *VMService {
	logger := zerolog.Ctx(ctx)

	byName := make(map[string]platform.Driver, len(candidates))
	for _, d := range candidates {
		byName[string(d.Platform())] = d
	}

	var drivers []platform.Driver
	for _, name := range cfg.Platforms() {
		d, ok := byName[name]
		if !ok {
			logger.Warn().Str("platform", name).Msg("Unknown platform in configuration, skipping")
			continue
		}
		if !d.IsAvailable() {
			notifier.Info(fmt.Sprintf("%s command not found", name))
			continue
		}
		notifier.Info(fmt.Sprintf("Detected %s platform", name))
		drivers = append(drivers, d)
	}
	if len(drivers) == 0 {
		notifier.Warning("No VM platforms detected")
	}

	return &VMService{
		cfg:      cfg,
		notifier: notifier,
		drivers:  drivers,
		now:      time.Now,
	}
}

// AvailablePlatforms 返回可用平台，保持配置中的顺序
func (s *VMService) AvailablePlatforms() []entity.Platform {
	out := make([]entity.Platform, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, d.Platform())
	}
	return out
}

// Drivers 返回可用驱动，保持配置中的顺序
func (s *VMService) Drivers() []platform.Driver {
	return s.drivers
}

// ListAllVMs 列举所有可用平台上的虚拟机
// 单个平台的失败只影响该平台的结果，其余平台照常返回
func (s *VMService) ListAllVMs(ctx context.Context) map[entity.Platform][]entity.VirtualMachine {
	result := make(map[entity.Platform][]entity.VirtualMachine, len(s.drivers))
	for _, d := range s.drivers {
		vms := d.ListVMs(ctx)
		result[d.Platform()] = vms
		s.notifier.Info(fmt.Sprintf("Found %d VMs on %s", len(vms), d.Platform()))
	}
	return result
}

// Resolve 把虚拟机名称解析为驱动
// 指定平台提示时提示必须在可用集合中；未指定时按配置顺序扫描，
// 返回第一个列表中包含该名称的平台
func (s *VMService) Resolve(ctx context.Context, vmName, platformHint string) (platform.Driver, error) {
	if platformHint != "" {
		for _, d := range s.drivers {
			if string(d.Platform()) == platformHint {
				return d, nil
			}
		}
		return nil, vmerror.WrapError(vmerror.ErrNotFound,
			fmt.Sprintf("platform %s is not available", platformHint), nil)
	}

	for _, d := range s.drivers {
		for _, vm := range d.ListVMs(ctx) {
			if vm.Name == vmName {
				return d, nil
			}
		}
	}
	return nil, vmerror.WrapError(vmerror.ErrNotFound,
		fmt.Sprintf("VM %s not found on any available platform", vmName), nil)
}

// CreateSnapshot 为虚拟机创建快照
// 未指定名称时按平台的命名风格生成默认名称
func (s *VMService) CreateSnapshot(ctx context.Context, req *entity.CreateSnapshotRequest) (*entity.Snapshot, error) {
	logger := zerolog.Ctx(ctx)

	driver, err := s.Resolve(ctx, req.VMName, req.Platform)
	if err != nil {
		return nil, err
	}

	name := req.SnapshotName
	createdAt := s.now()
	if name == "" {
		name = entity.ManagedSnapshotName(driver.NameStyle(), createdAt)
	}

	logger.Info().
		Str("vm", req.VMName).
		Str("platform", string(driver.Platform())).
		Str("snapshot", name).
		Msg("Creating snapshot")

	if !driver.CreateSnapshot(ctx, req.VMName, name) {
		s.notifier.Failure(fmt.Sprintf("Failed to create snapshot '%s' for VM '%s'", name, req.VMName))
		return nil, vmerror.WrapError(vmerror.ErrCommandFailure,
			fmt.Sprintf("failed to create snapshot %s for VM %s", name, req.VMName), nil)
	}

	s.notifier.Success(fmt.Sprintf("Created snapshot '%s' for VM '%s'", name, req.VMName))
	return &entity.Snapshot{
		Name:      name,
		VMName:    req.VMName,
		Platform:  driver.Platform(),
		CreatedAt: &createdAt,
		Kind:      entity.KindOfSnapshot(name),
	}, nil
}

// ListSnapshots 列举虚拟机的快照，按创建时间从新到旧排序
func (s *VMService) ListSnapshots(ctx context.Context, req *entity.ListSnapshotsRequest) ([]entity.Snapshot, error) {
	driver, err := s.Resolve(ctx, req.VMName, req.Platform)
	if err != nil {
		return nil, err
	}

	snapshots := driver.ListSnapshots(ctx, req.VMName)
	platform.SortNewestFirst(snapshots)
	return snapshots, nil
}

// DeleteSnapshot 删除单个快照
func (s *VMService) DeleteSnapshot(ctx context.Context, req *entity.DeleteSnapshotRequest) error {
	driver, err := s.Resolve(ctx, req.VMName, req.Platform)
	if err != nil {
		return err
	}

	if !driver.DeleteSnapshot(ctx, req.VMName, req.SnapshotName, !req.NoPurge) {
		s.notifier.Failure(fmt.Sprintf("Failed to delete snapshot '%s' from VM '%s'", req.SnapshotName, req.VMName))
		return vmerror.WrapError(vmerror.ErrCommandFailure,
			fmt.Sprintf("failed to delete snapshot %s from VM %s", req.SnapshotName, req.VMName), nil)
	}

	s.notifier.Success(fmt.Sprintf("Deleted snapshot '%s' from VM '%s'", req.SnapshotName, req.VMName))
	return nil
}

// DeleteAllSnapshots 删除虚拟机的全部快照，返回成功删除的数量
func (s *VMService) DeleteAllSnapshots(ctx context.Context, req *entity.DeleteAllSnapshotsRequest) (int, error) {
	driver, err := s.Resolve(ctx, req.VMName, req.Platform)
	if err != nil {
		return 0, err
	}

	deleted := driver.DeleteAllSnapshots(ctx, req.VMName, !req.NoPurge)
	s.notifier.Info(fmt.Sprintf("Deleted %d snapshots from VM '%s'", deleted, req.VMName))
	return deleted, nil
}

// CleanupOldSnapshots 对所有可用平台上的所有虚拟机执行保留清理
// 驱动实现了自定义清理时优先使用，否则应用通用保留算法。
// 单台虚拟机的失败只追加到汇总的 Errors，整个过程绝不提前中止
func (s *VMService) CleanupOldSnapshots(ctx context.Context) *entity.CleanupSummary {
	logger := zerolog.Ctx(ctx)

	retention := s.cfg.SnapshotRetention()
	summary := &entity.CleanupSummary{}

	for _, d := range s.drivers {
		for _, vm := range d.ListVMs(ctx) {
			summary.VMsProcessed++

			if cleaner, ok := d.(platform.SnapshotCleaner); ok {
				summary.TotalDeleted += cleaner.CleanupOldSnapshots(ctx, vm.Name, retention)
				continue
			}

			victims := platform.OldestBeyondRetention(d.ListSnapshots(ctx, vm.Name), retention)
			failed := 0
			for _, snap := range victims {
				if d.DeleteSnapshot(ctx, vm.Name, snap.Name, true) {
					summary.TotalDeleted++
				} else {
					failed++
				}
			}
			if failed > 0 {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("%s/%s: %d of %d deletions failed", d.Platform(), vm.Name, failed, len(victims)))
			}
		}
	}

	logger.Info().
		Int("deleted", summary.TotalDeleted).
		Int("vms", summary.VMsProcessed).
		Int("errors", len(summary.Errors)).
		Msg("Snapshot cleanup finished")
	return summary
}

// PlanCleanup 清理预演，列出将被删除的快照但不执行删除
// 预演始终使用通用保留算法
func (s *VMService) PlanCleanup(ctx context.Context) []entity.PlannedDeletion {
	retention := s.cfg.SnapshotRetention()

	var plan []entity.PlannedDeletion
	for _, d := range s.drivers {
		for _, vm := range d.ListVMs(ctx) {
			for _, snap := range platform.OldestBeyondRetention(d.ListSnapshots(ctx, vm.Name), retention) {
				plan = append(plan, entity.PlannedDeletion{
					Platform:  d.Platform(),
					VMName:    vm.Name,
					Snapshot:  snap.Name,
					CreatedAt: snap.CreatedAt,
				})
			}
		}
	}
	return plan
}

// PlatformStatuses 返回每个配置平台的可用性概览
func (s *VMService) PlatformStatuses(ctx context.Context) []entity.PlatformStatus {
	available := make(map[entity.Platform]platform.Driver, len(s.drivers))
	for _, d := range s.drivers {
		available[d.Platform()] = d
	}

	var statuses []entity.PlatformStatus
	for _, name := range s.cfg.Platforms() {
		st := entity.PlatformStatus{Name: entity.Platform(name)}
		if d, ok := available[entity.Platform(name)]; ok {
			st.Available = true
			st.VMCount = len(d.ListVMs(ctx))
		}
		statuses = append(statuses, st)
	}
	return statuses
}

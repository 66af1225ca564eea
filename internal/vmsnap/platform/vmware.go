package platform

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

const vmwareBin = "vmrun"

// VMware 适配 VMware Fusion / Workstation
// vmrun 以 .vmx 文件路径寻址虚拟机，所有操作前先把名称解析为路径
type VMware struct {
	runner Runner
}

func NewVMware(runner Runner) *VMware {
	return &VMware{runner: runner}
}

func (w *VMware) Platform() entity.Platform { return entity.PlatformVMware }

func (w *VMware) NameStyle() entity.SnapshotNameStyle { return entity.SnapshotNameStyleUnderscore }

func (w *VMware) IsAvailable() bool { return w.runner.LookPath(vmwareBin) }

// ListVMs 列举虚拟机
// vmrun list 只输出 .vmx 路径，不含状态字段
func (w *VMware) ListVMs(ctx context.Context) []entity.VirtualMachine {
	logger := zerolog.Ctx(ctx)

	output, err := w.runner.Run(ctx, vmwareBin, "list")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list VMware VMs")
		return nil
	}

	lines := strings.Split(output, "\n")
	if len(lines) > 0 {
		// 第一行是 "Total running VMs: N"
		lines = lines[1:]
	}

	var vms []entity.VirtualMachine
	for _, line := range lines {
		path := strings.TrimSpace(line)
		if path == "" {
			continue
		}
		vms = append(vms, entity.VirtualMachine{
			Name:     strings.TrimSuffix(filepath.Base(path), ".vmx"),
			State:    entity.VMStateUnknown,
			Platform: entity.PlatformVMware,
			Path:     path,
		})
	}
	return vms
}

// resolvePath 把虚拟机名称解析为 .vmx 路径
func (w *VMware) resolvePath(ctx context.Context, vmName string) (string, bool) {
	for _, vm := range w.ListVMs(ctx) {
		if vm.Name == vmName {
			return vm.Path, true
		}
	}
	return "", false
}

func (w *VMware) CreateSnapshot(ctx context.Context, vmName, snapshotName string) bool {
	logger := zerolog.Ctx(ctx)

	path, ok := w.resolvePath(ctx, vmName)
	if !ok {
		logger.Error().Str("vm", vmName).Msg("VM not found in vmrun list")
		return false
	}

	if _, err := w.runner.Run(ctx, vmwareBin, "snapshot", path, snapshotName); err != nil {
		logger.Error().Err(err).Str("vm", vmName).Str("snapshot", snapshotName).Msg("Failed to create snapshot")
		return false
	}
	return true
}

// ListSnapshots 列举快照
// vmrun listSnapshots 只输出名称，创建时间视为未知
func (w *VMware) ListSnapshots(ctx context.Context, vmName string) []entity.Snapshot {
	logger := zerolog.Ctx(ctx)

	path, ok := w.resolvePath(ctx, vmName)
	if !ok {
		logger.Error().Str("vm", vmName).Msg("VM not found in vmrun list")
		return nil
	}

	output, err := w.runner.Run(ctx, vmwareBin, "listSnapshots", path)
	if err != nil {
		logger.Error().Err(err).Str("vm", vmName).Msg("Failed to list snapshots")
		return nil
	}

	var snapshots []entity.Snapshot
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "Total snapshots:") {
			continue
		}
		snapshots = append(snapshots, entity.Snapshot{
			Name:     name,
			VMName:   vmName,
			Platform: entity.PlatformVMware,
			Kind:     entity.KindOfSnapshot(name),
		})
	}
	return snapshots
}

// DeleteSnapshot 删除快照
// vmrun 的删除总是彻底删除，purge 参数不产生差异
func (w *VMware) DeleteSnapshot(ctx context.Context, vmName, snapshotName string, _ bool) bool {
	logger := zerolog.Ctx(ctx)

	path, ok := w.resolvePath(ctx, vmName)
	if !ok {
		logger.Error().Str("vm", vmName).Msg("VM not found in vmrun list")
		return false
	}

	if _, err := w.runner.Run(ctx, vmwareBin, "deleteSnapshot", path, snapshotName); err != nil {
		logger.Error().Err(err).Str("vm", vmName).Str("snapshot", snapshotName).Msg("Failed to delete snapshot")
		return false
	}
	return true
}

func (w *VMware) DeleteAllSnapshots(ctx context.Context, vmName string, purge bool) int {
	return deleteAllSnapshots(ctx, w, vmName, purge)
}

var _ Driver = (*VMware)(nil)

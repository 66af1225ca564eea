package platform

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

const multipassBin = "multipass"

// Multipass 适配 Canonical Multipass
// 实例必须处于停止状态才能创建快照，运行中的实例会先被停止
type Multipass struct {
	runner Runner
}

func NewMultipass(runner Runner) *Multipass {
	return &Multipass{runner: runner}
}

func (m *Multipass) Platform() entity.Platform { return entity.PlatformMultipass }

// NameStyle Multipass 快照名称只接受字母、数字和连字符
func (m *Multipass) NameStyle() entity.SnapshotNameStyle { return entity.SnapshotNameStyleHyphen }

func (m *Multipass) IsAvailable() bool { return m.runner.LookPath(multipassBin) }

func (m *Multipass) ListVMs(ctx context.Context) []entity.VirtualMachine {
	logger := zerolog.Ctx(ctx)

	output, err := m.runner.Run(ctx, multipassBin, "list", "--format", "json")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list multipass instances")
		return nil
	}

	var payload struct {
		List []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"list"`
	}
	if err = json.Unmarshal([]byte(output), &payload); err != nil {
		logger.Error().Err(err).Msg("Failed to parse multipass list output")
		return nil
	}

	vms := make([]entity.VirtualMachine, 0, len(payload.List))
	for _, item := range payload.List {
		vms = append(vms, entity.VirtualMachine{
			Name:     item.Name,
			State:    multipassState(item.State),
			Platform: entity.PlatformMultipass,
		})
	}
	return vms
}

// multipassState 把 multipass 的状态文本映射为统一状态
func multipassState(raw string) entity.VMState {
	switch raw {
	case "Running":
		return entity.VMStateRunning
	case "Stopped":
		return entity.VMStateStopped
	case "Suspended":
		return entity.VMStateSuspended
	default:
		return entity.VMStateUnknown
	}
}

// CreateSnapshot 创建快照
// 运行中的实例先停止，停止失败则整个操作失败
func (m *Multipass) CreateSnapshot(ctx context.Context, vmName, snapshotName string) bool {
	logger := zerolog.Ctx(ctx)

	if m.instanceState(ctx, vmName) == entity.VMStateRunning {
		if _, err := m.runner.Run(ctx, multipassBin, "stop", vmName); err != nil {
			logger.Error().Err(err).Str("vm", vmName).Msg("Failed to stop instance before snapshot")
			return false
		}
	}

	if _, err := m.runner.Run(ctx, multipassBin, "snapshot", "--name", snapshotName, vmName); err != nil {
		logger.Error().Err(err).Str("vm", vmName).Str("snapshot", snapshotName).Msg("Failed to create snapshot")
		return false
	}
	return true
}

func (m *Multipass) instanceState(ctx context.Context, vmName string) entity.VMState {
	for _, vm := range m.ListVMs(ctx) {
		if vm.Name == vmName {
			return vm.State
		}
	}
	return entity.VMStateUnknown
}

// ListSnapshots 列举快照
// 列表输出不含创建时间，保留策略对 multipass 退化为按名称排序
func (m *Multipass) ListSnapshots(ctx context.Context, vmName string) []entity.Snapshot {
	logger := zerolog.Ctx(ctx)

	output, err := m.runner.Run(ctx, multipassBin, "list", "--snapshots", "--format", "json")
	if err != nil {
		logger.Error().Err(err).Str("vm", vmName).Msg("Failed to list multipass snapshots")
		return nil
	}

	var payload struct {
		Info map[string]map[string]struct {
			Comment string `json:"comment"`
		} `json:"info"`
	}
	if err = json.Unmarshal([]byte(output), &payload); err != nil {
		logger.Error().Err(err).Msg("Failed to parse multipass snapshot output")
		return nil
	}

	names := make([]string, 0, len(payload.Info[vmName]))
	for name := range payload.Info[vmName] {
		names = append(names, name)
	}
	sort.Strings(names)

	snapshots := make([]entity.Snapshot, 0, len(names))
	for _, name := range names {
		snapshots = append(snapshots, entity.Snapshot{
			Name:        name,
			VMName:      vmName,
			Platform:    entity.PlatformMultipass,
			Kind:        entity.KindOfSnapshot(name),
			Description: payload.Info[vmName][name].Comment,
		})
	}
	return snapshots
}

// DeleteSnapshot 删除快照
// purge 为 false 时只做标记删除，之后仍可通过 multipass recover 找回
func (m *Multipass) DeleteSnapshot(ctx context.Context, vmName, snapshotName string, purge bool) bool {
	logger := zerolog.Ctx(ctx)

	target := vmName + "." + snapshotName
	args := []string{"delete"}
	if purge {
		args = append(args, "--purge")
	}
	args = append(args, target)

	if _, err := m.runner.Run(ctx, multipassBin, args...); err != nil {
		logger.Error().Err(err).Str("snapshot", target).Msg("Failed to delete snapshot")
		return false
	}
	return true
}

func (m *Multipass) DeleteAllSnapshots(ctx context.Context, vmName string, purge bool) int {
	return deleteAllSnapshots(ctx, m, vmName, purge)
}

// CleanupOldSnapshots 自定义清理：逐个软删除过期快照，
// 最后统一执行一次 purge 回收空间
func (m *Multipass) CleanupOldSnapshots(ctx context.Context, vmName string, retention int) int {
	logger := zerolog.Ctx(ctx)

	victims := OldestBeyondRetention(m.ListSnapshots(ctx, vmName), retention)
	if len(victims) == 0 {
		return 0
	}

	deleted := 0
	for _, snap := range victims {
		if m.DeleteSnapshot(ctx, vmName, snap.Name, false) {
			deleted++
		}
	}
	if deleted > 0 {
		if _, err := m.runner.Run(ctx, multipassBin, "purge"); err != nil {
			logger.Warn().Err(err).Str("vm", vmName).Msg("Failed to purge deleted snapshots")
		}
	}
	return deleted
}

var (
	_ Driver          = (*Multipass)(nil)
	_ SnapshotCleaner = (*Multipass)(nil)
)

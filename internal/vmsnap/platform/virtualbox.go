package platform

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

const virtualBoxBin = "vboxmanage"

// snapshotDescriptionPrefix 创建时间写入描述文本，列举时再尽力恢复
const snapshotDescriptionPrefix = "vmsnap snapshot created at "

// vboxVMLine 匹配 `vboxmanage list vms` 的输出行："名称" {UUID}
var vboxVMLine = regexp.MustCompile(`"([^"]+)"\s+\{([^}]+)\}`)

// VirtualBox 适配 Oracle VirtualBox
// 快照名称字符集受限，创建前会先净化名称
type VirtualBox struct {
	runner Runner
}

func NewVirtualBox(runner Runner) *VirtualBox {
	return &VirtualBox{runner: runner}
}

func (v *VirtualBox) Platform() entity.Platform { return entity.PlatformVirtualBox }

func (v *VirtualBox) NameStyle() entity.SnapshotNameStyle { return entity.SnapshotNameStyleHyphen }

func (v *VirtualBox) IsAvailable() bool { return v.runner.LookPath(virtualBoxBin) }

func (v *VirtualBox) ListVMs(ctx context.Context) []entity.VirtualMachine {
	logger := zerolog.Ctx(ctx)

	output, err := v.runner.Run(ctx, virtualBoxBin, "list", "vms")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list VirtualBox VMs")
		return nil
	}

	var vms []entity.VirtualMachine
	for _, line := range strings.Split(output, "\n") {
		match := vboxVMLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		vms = append(vms, entity.VirtualMachine{
			Name:     match[1],
			UUID:     match[2],
			State:    v.vmState(ctx, match[2]),
			Platform: entity.PlatformVirtualBox,
		})
	}
	return vms
}

// vmState 查询单台虚拟机状态，查询失败时降级为未知
func (v *VirtualBox) vmState(ctx context.Context, uuid string) entity.VMState {
	output, err := v.runner.Run(ctx, virtualBoxBin, "showvminfo", uuid, "--machinereadable")
	if err != nil {
		return entity.VMStateUnknown
	}
	for _, line := range strings.Split(output, "\n") {
		value, found := strings.CutPrefix(line, "VMState=")
		if !found {
			continue
		}
		return virtualBoxState(strings.Trim(value, `"`))
	}
	return entity.VMStateUnknown
}

// virtualBoxState 把 VirtualBox 的状态文本映射为统一状态
func virtualBoxState(raw string) entity.VMState {
	switch raw {
	case "running", "starting":
		return entity.VMStateRunning
	case "poweroff", "aborted":
		return entity.VMStateStopped
	case "saved", "paused":
		return entity.VMStateSuspended
	default:
		return entity.VMStateUnknown
	}
}

// CreateSnapshot 创建快照
// 名称先净化为 VirtualBox 接受的字符集；带描述的创建被拒绝时
// 去掉描述重试一次
func (v *VirtualBox) CreateSnapshot(ctx context.Context, vmName, snapshotName string) bool {
	logger := zerolog.Ctx(ctx)

	name := sanitizeSnapshotName(snapshotName)
	if name != snapshotName {
		logger.Warn().
			Str("requested", snapshotName).
			Str("sanitized", name).
			Msg("Snapshot name sanitized for VirtualBox")
	}

	description := snapshotDescriptionPrefix + time.Now().Format(time.RFC3339)
	_, err := v.runner.Run(ctx, virtualBoxBin, "snapshot", vmName, "take", name, "--description", description)
	if err == nil {
		return true
	}
	logger.Warn().Err(err).Str("vm", vmName).Msg("Snapshot with description rejected, retrying without it")

	if _, err = v.runner.Run(ctx, virtualBoxBin, "snapshot", vmName, "take", name); err != nil {
		logger.Error().Err(err).Str("vm", vmName).Str("snapshot", name).Msg("Failed to create snapshot")
		return false
	}
	return true
}

// sanitizeSnapshotName 把名称净化为字母、数字、连字符、下划线和点，
// 其余字符替换为连字符
func sanitizeSnapshotName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "snapshot"
	}
	return out
}

// ListSnapshots 列举快照
// 创建时间从描述文本中尽力恢复，描述是自由文本，解析失败时视为未知
func (v *VirtualBox) ListSnapshots(ctx context.Context, vmName string) []entity.Snapshot {
	logger := zerolog.Ctx(ctx)

	output, err := v.runner.Run(ctx, virtualBoxBin, "snapshot", vmName, "list", "--machinereadable")
	if err != nil {
		// 虚拟机没有任何快照时 vboxmanage 也以非零状态退出
		if strings.Contains(output, "does not have any snapshots") {
			return nil
		}
		logger.Error().Err(err).Str("vm", vmName).Msg("Failed to list snapshots")
		return nil
	}

	var snapshots []entity.Snapshot
	var current *entity.Snapshot
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch {
		case strings.HasPrefix(key, "SnapshotName"):
			if current != nil {
				snapshots = append(snapshots, *current)
			}
			current = &entity.Snapshot{
				Name:     value,
				VMName:   vmName,
				Platform: entity.PlatformVirtualBox,
				Kind:     entity.KindOfSnapshot(value),
			}
		case strings.HasPrefix(key, "SnapshotDescription") && current != nil:
			current.Description = value
			current.CreatedAt = timestampFromDescription(value)
		}
	}
	if current != nil {
		snapshots = append(snapshots, *current)
	}
	return snapshots
}

// timestampFromDescription 从描述文本的结尾恢复创建时间
func timestampFromDescription(description string) *time.Time {
	idx := strings.LastIndex(description, " at ")
	if idx < 0 {
		return nil
	}
	raw := strings.TrimSpace(description[idx+4:])
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

// DeleteSnapshot 删除快照
// VirtualBox 删除快照时立即合并磁盘，没有软删除，purge 参数不产生差异
func (v *VirtualBox) DeleteSnapshot(ctx context.Context, vmName, snapshotName string, _ bool) bool {
	logger := zerolog.Ctx(ctx)

	if _, err := v.runner.Run(ctx, virtualBoxBin, "snapshot", vmName, "delete", snapshotName); err != nil {
		logger.Error().Err(err).Str("vm", vmName).Str("snapshot", snapshotName).Msg("Failed to delete snapshot")
		return false
	}
	return true
}

func (v *VirtualBox) DeleteAllSnapshots(ctx context.Context, vmName string, purge bool) int {
	return deleteAllSnapshots(ctx, v, vmName, purge)
}

var _ Driver = (*VirtualBox)(nil)

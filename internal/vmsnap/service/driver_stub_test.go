package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/platform"
)

// fakeDriver 测试用的内存平台驱动
type fakeDriver struct {
	mu         sync.Mutex
	platform   entity.Platform
	style      entity.SnapshotNameStyle
	available  bool
	vms        []entity.VirtualMachine
	snapshots  map[string][]entity.Snapshot
	failCreate map[string]bool
	failDelete map[string]bool
	created    []string
	deleted    []string
}

var _ platform.Driver = (*fakeDriver)(nil)

func newFakeDriver(p entity.Platform, style entity.SnapshotNameStyle) *fakeDriver {
	return &fakeDriver{
		platform:   p,
		style:      style,
		available:  true,
		snapshots:  map[string][]entity.Snapshot{},
		failCreate: map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (d *fakeDriver) addVM(name string, state entity.VMState) *fakeDriver {
	d.vms = append(d.vms, entity.VirtualMachine{Name: name, State: state, Platform: d.platform})
	return d
}

func (d *fakeDriver) addSnapshot(vm, name string, createdAt *time.Time) *fakeDriver {
	d.snapshots[vm] = append(d.snapshots[vm], entity.Snapshot{
		Name:      name,
		VMName:    vm,
		Platform:  d.platform,
		CreatedAt: createdAt,
		Kind:      entity.KindOfSnapshot(name),
	})
	return d
}

func (d *fakeDriver) Platform() entity.Platform {
	return d.platform
}

func (d *fakeDriver) NameStyle() entity.SnapshotNameStyle {
	return d.style
}

func (d *fakeDriver) IsAvailable() bool {
	return d.available
}

func (d *fakeDriver) ListVMs(context.Context) []entity.VirtualMachine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]entity.VirtualMachine, len(d.vms))
	copy(out, d.vms)
	return out
}

func (d *fakeDriver) CreateSnapshot(_ context.Context, vmName, snapshotName string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, vmName+"/"+snapshotName)
	if d.failCreate[vmName] {
		return false
	}
	d.snapshots[vmName] = append(d.snapshots[vmName], entity.Snapshot{
		Name:     snapshotName,
		VMName:   vmName,
		Platform: d.platform,
		Kind:     entity.KindOfSnapshot(snapshotName),
	})
	return true
}

func (d *fakeDriver) ListSnapshots(_ context.Context, vmName string) []entity.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]entity.Snapshot, len(d.snapshots[vmName]))
	copy(out, d.snapshots[vmName])
	return out
}

func (d *fakeDriver) DeleteSnapshot(_ context.Context, vmName, snapshotName string, purge bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := vmName + "/" + snapshotName
	d.deleted = append(d.deleted, fmt.Sprintf("%s purge=%t", key, purge))
	if d.failDelete[key] {
		return false
	}
	snaps := d.snapshots[vmName]
	for i, snap := range snaps {
		if snap.Name == snapshotName {
			d.snapshots[vmName] = append(snaps[:i:i], snaps[i+1:]...)
			return true
		}
	}
	return false
}

func (d *fakeDriver) DeleteAllSnapshots(ctx context.Context, vmName string, purge bool) int {
	deleted := 0
	for _, snap := range d.ListSnapshots(ctx, vmName) {
		if d.DeleteSnapshot(ctx, vmName, snap.Name, purge) {
			deleted++
		}
	}
	return deleted
}

// snapshotNames 返回虚拟机当前快照名称
func (d *fakeDriver) snapshotNames(vmName string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for _, snap := range d.snapshots[vmName] {
		names = append(names, snap.Name)
	}
	return names
}

func (d *fakeDriver) createdCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.created))
	copy(out, d.created)
	return out
}

func (d *fakeDriver) deletedCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.deleted))
	copy(out, d.deleted)
	return out
}

// fakeCleanerDriver 带自定义清理逻辑的驱动，覆盖通用保留算法
type fakeCleanerDriver struct {
	*fakeDriver
	cleanupCalls []string
	cleanupCount int
}

var (
	_ platform.Driver          = (*fakeCleanerDriver)(nil)
	_ platform.SnapshotCleaner = (*fakeCleanerDriver)(nil)
)

func (d *fakeCleanerDriver) CleanupOldSnapshots(_ context.Context, vmName string, retention int) int {
	d.cleanupCalls = append(d.cleanupCalls, fmt.Sprintf("%s retention=%d", vmName, retention))
	return d.cleanupCount
}

// newTestConfig 从 YAML 文本构造配置
func newTestConfig(t *testing.T, yamlText string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFileForTest(t, path, yamlText)
	cfg, err := config.New(path)
	require.NoError(t, err)
	return cfg
}

// writeFileForTest 写入测试文件，必要时创建父目录
func writeFileForTest(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

const vmrunList = `Total running VMs: 2
/Users/dev/VMs/win10-build.vmwarevm/win10-build.vmx
/Users/dev/VMs/fedora-test.vmwarevm/fedora-test.vmx`

func TestVMwareListVMs(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.on("vmrun list", vmrunList)

	vms := NewVMware(runner).ListVMs(context.Background())
	require.Len(t, vms, 2)
	require.Equal(t, "win10-build", vms[0].Name)
	require.Equal(t, "/Users/dev/VMs/win10-build.vmwarevm/win10-build.vmx", vms[0].Path)
	require.Equal(t, entity.VMStateUnknown, vms[0].State)
	require.Equal(t, "fedora-test", vms[1].Name)
}

func TestVMwareListVMsEmpty(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.on("vmrun list", "Total running VMs: 0")

	require.Empty(t, NewVMware(runner).ListVMs(context.Background()))
}

func TestVMwareCreateSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "ResolvesPathFirst",
			testFunc: func(t *testing.T) {
				runner := newFakeRunner()
				runner.on("vmrun list", vmrunList)
				runner.on("vmrun snapshot /Users/dev/VMs/win10-build.vmwarevm/win10-build.vmx vmsnap_20260825_143005", "")

				ok := NewVMware(runner).CreateSnapshot(context.Background(), "win10-build", "vmsnap_20260825_143005")
				require.True(t, ok)
				require.Equal(t, "vmrun list", runner.calls[0])
			},
		},
		{
			name: "UnknownVMFails",
			testFunc: func(t *testing.T) {
				runner := newFakeRunner()
				runner.on("vmrun list", vmrunList)

				ok := NewVMware(runner).CreateSnapshot(context.Background(), "no-such-vm", "nightly")
				require.False(t, ok)
				require.Len(t, runner.calls, 1)
			},
		},
		{
			name: "CommandFailure",
			testFunc: func(t *testing.T) {
				runner := newFakeRunner()
				runner.on("vmrun list", vmrunList)
				runner.onError("vmrun snapshot /Users/dev/VMs/win10-build.vmwarevm/win10-build.vmx nightly", "Error: timed out")

				require.False(t, NewVMware(runner).CreateSnapshot(context.Background(), "win10-build", "nightly"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.testFunc(t)
		})
	}
}

func TestVMwareListSnapshots(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.on("vmrun list", vmrunList)
	runner.on("vmrun listSnapshots /Users/dev/VMs/win10-build.vmwarevm/win10-build.vmx", `Total snapshots: 3
vmsnap_20260820_020000
vmsnap_20260821_020000
golden`)

	snapshots := NewVMware(runner).ListSnapshots(context.Background(), "win10-build")
	require.Len(t, snapshots, 3)
	require.Equal(t, "vmsnap_20260820_020000", snapshots[0].Name)
	require.Equal(t, entity.SnapshotKindManaged, snapshots[0].Kind)
	require.Equal(t, entity.SnapshotKindManual, snapshots[2].Kind)
	for _, snap := range snapshots {
		require.Nil(t, snap.CreatedAt)
	}
}

func TestVMwareDeleteSnapshot(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.on("vmrun list", vmrunList)
	runner.on("vmrun deleteSnapshot /Users/dev/VMs/fedora-test.vmwarevm/fedora-test.vmx vmsnap_20260820_020000", "")

	driver := NewVMware(runner)
	require.True(t, driver.DeleteSnapshot(context.Background(), "fedora-test", "vmsnap_20260820_020000", true))
	require.False(t, driver.DeleteSnapshot(context.Background(), "no-such-vm", "whatever", true))
}

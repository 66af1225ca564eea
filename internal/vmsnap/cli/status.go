package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
)

var flagStatusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show VM snapshot status and statistics",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "Output in JSON format")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	vms := newVMService(ctx)
	handle := newScheduler(ctx, vms)
	defer handle.Close()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	status := &entity.SystemStatus{
		Platforms: vms.PlatformStatuses(ctx),
		Scheduler: handle.scheduler.State(),
		Storage:   storage.Status(ctx),
	}

	if flagStatusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "\nvmsnap Status")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	fmt.Fprintln(out, "\nVirtual Machines:")
	available := make([]string, 0, len(status.Platforms))
	totalVMs := 0
	for _, p := range status.Platforms {
		if p.Available {
			available = append(available, string(p.Name))
			totalVMs += p.VMCount
		}
	}
	if len(available) == 0 {
		fmt.Fprintln(out, "  Available Platforms: None")
	} else {
		fmt.Fprintf(out, "  Available Platforms: %s\n", strings.Join(available, ", "))
	}
	fmt.Fprintf(out, "  Total VMs: %d\n", totalVMs)
	fmt.Fprintf(out, "  Snapshot Retention: keep last %d\n", app.cfg.SnapshotRetention())

	for _, p := range status.Platforms {
		if !p.Available {
			fmt.Fprintf(out, "  %s: not available\n", p.Name)
			continue
		}
		fmt.Fprintf(out, "  %s: %d VMs\n", p.Name, p.VMCount)
	}

	fmt.Fprintln(out, "\nScheduler:")
	fmt.Fprintf(out, "  Enabled: %t\n", status.Scheduler.Enabled)
	fmt.Fprintf(out, "  Interval: %s\n", handle.scheduler.IntervalText())
	if status.Scheduler.LastRun != nil {
		fmt.Fprintf(out, "  Last Run: %s\n", status.Scheduler.LastRun.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "  Last Run: Never")
	}

	fmt.Fprintln(out, "\nBackup Storage:")
	fmt.Fprintf(out, "  Path: %s\n", status.Storage.Path)
	fmt.Fprintf(out, "  Backups: %d (%s)\n", status.Storage.BackupCount, humanize.IBytes(uint64(status.Storage.TotalSizeBytes)))
	if status.Storage.DiskTotalBytes > 0 {
		fmt.Fprintf(out, "  Disk: %s free of %s (%.1f%% used)\n",
			humanize.IBytes(status.Storage.DiskFreeBytes),
			humanize.IBytes(status.Storage.DiskTotalBytes),
			status.Storage.UsagePercent)
	}
	for _, alert := range status.Storage.Alerts {
		fmt.Fprintf(out, "  ALERT: %s\n", alert)
	}

	return nil
}

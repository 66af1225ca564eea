package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

var (
	flagListPlatform      string
	flagSnapshotsPlatform string
	flagSnapshotsSort     string
	flagSnapshotsDetails  bool
	flagSnapshotsFormat   string
	flagSnapshotPlatform  string
	flagSnapshotName      string
	flagDeletePlatform    string
	flagDeleteConfirm     bool
	flagDeleteNoPurge     bool
	flagCleanupDryRun     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all VMs and their snapshots",
	RunE:  runList,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <vm-name>",
	Short: "List snapshots for a specific VM",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshots,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <vm-name>",
	Short: "Create a VM snapshot",
	Long: `Create a VM snapshot.

Without --name a tool-managed name is generated from the current time,
for example vmsnap-20260825-143005. Custom names are taken as-is; unless
they carry a reserved prefix they count as manual snapshots and retention
cleanup never touches them.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

var deleteSnapshotCmd = &cobra.Command{
	Use:   "delete-snapshot <vm-name> <snapshot>...",
	Short: "Delete one or more VM snapshots",
	Long: `Delete one or more VM snapshots.

Pass the single keyword "all" to delete every snapshot of the VM.
Deletion purges by default; --no-purge keeps Multipass snapshots
recoverable until the next purge.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDeleteSnapshot,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old tool-managed snapshots based on retention policy",
	RunE:  runCleanup,
}

func init() {
	listCmd.Flags().StringVarP(&flagListPlatform, "platform", "p", "", "Only show VMs of this platform")

	snapshotsCmd.Flags().StringVarP(&flagSnapshotsPlatform, "platform", "p", "", "Specific VM platform")
	snapshotsCmd.Flags().StringVarP(&flagSnapshotsSort, "sort", "s", "date", "Sort snapshots by name or date")
	snapshotsCmd.Flags().BoolVar(&flagSnapshotsDetails, "details", false, "Show detailed snapshot information")
	snapshotsCmd.Flags().StringVarP(&flagSnapshotsFormat, "format", "f", "table", "Output format: table or json")

	snapshotCmd.Flags().StringVarP(&flagSnapshotPlatform, "platform", "p", "", "Specific VM platform")
	snapshotCmd.Flags().StringVarP(&flagSnapshotName, "name", "n", "", "Custom snapshot name")

	deleteSnapshotCmd.Flags().StringVarP(&flagDeletePlatform, "platform", "p", "", "Specific VM platform")
	deleteSnapshotCmd.Flags().BoolVar(&flagDeleteConfirm, "confirm", false, "Skip confirmation prompt")
	deleteSnapshotCmd.Flags().BoolVar(&flagDeleteNoPurge, "no-purge", false, "Delete without purging (Multipass only)")

	cleanupCmd.Flags().BoolVar(&flagCleanupDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	vms := newVMService(ctx)
	platforms := vms.AvailablePlatforms()
	if len(platforms) == 0 {
		fmt.Fprintln(out, "No VM platforms available.")
		return nil
	}

	fmt.Fprintln(out, "\nVirtual Machines & Snapshots")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	byPlatform := vms.ListAllVMs(ctx)
	totalVMs := 0
	totalSnapshots := 0

	for _, p := range platforms {
		if flagListPlatform != "" && string(p) != flagListPlatform {
			continue
		}

		fmt.Fprintf(out, "\n%s:\n", strings.ToUpper(string(p)))
		machines := byPlatform[p]
		if len(machines) == 0 {
			fmt.Fprintln(out, "  No VMs found")
			continue
		}

		for _, vm := range machines {
			totalVMs++
			fmt.Fprintf(out, "  %s (%s)\n", vm.Name, vm.State)

			snapshots, err := vms.ListSnapshots(ctx, &entity.ListSnapshotsRequest{
				VMName:   vm.Name,
				Platform: string(p),
			})
			if err != nil {
				fmt.Fprintf(out, "    snapshots: error - %v\n", err)
				continue
			}
			totalSnapshots += len(snapshots)
			if len(snapshots) == 0 {
				fmt.Fprintln(out, "    no snapshots")
				continue
			}

			fmt.Fprintf(out, "    snapshots: %d\n", len(snapshots))
			for i, snap := range snapshots {
				if i == 5 {
					fmt.Fprintf(out, "      ... and %d more\n", len(snapshots)-5)
					break
				}
				marker := "-"
				if snap.Kind != entity.SnapshotKindManual {
					marker = "*"
				}
				fmt.Fprintf(out, "      %s %s (%s)\n", marker, snap.Name, formatCreatedAt(snap.CreatedAt))
			}
		}
	}

	fmt.Fprintf(out, "\nSummary: %d VMs, %d snapshots\n", totalVMs, totalSnapshots)
	return nil
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	vmName := args[0]

	vms := newVMService(ctx)
	snapshots, err := vms.ListSnapshots(ctx, &entity.ListSnapshotsRequest{
		VMName:   vmName,
		Platform: flagSnapshotsPlatform,
	})
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintf(out, "No snapshots found for VM: %s\n", vmName)
		return nil
	}

	// ListSnapshots 已按时间从新到旧排序，按名称排序时重排
	if flagSnapshotsSort == "name" {
		sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	}

	if flagSnapshotsFormat == "json" {
		data, err := json.MarshalIndent(snapshots, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "\nSnapshots for VM: %s\n", vmName)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if flagSnapshotsDetails {
		for i, snap := range snapshots {
			fmt.Fprintf(out, "\n%d. %s\n", i+1, snap.Name)
			fmt.Fprintf(out, "   Created: %s\n", formatCreatedAt(snap.CreatedAt))
			fmt.Fprintf(out, "   Platform: %s\n", snap.Platform)
			fmt.Fprintf(out, "   Type: %s\n", kindName(snap.Kind))
			if snap.Description != "" {
				fmt.Fprintf(out, "   Description: %s\n", snap.Description)
			}
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTYPE\tNAME\tCREATED")
		for i, snap := range snapshots {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, kindTag(snap.Kind), snap.Name, formatCreatedAt(snap.CreatedAt))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	auto, managed := 0, 0
	for _, snap := range snapshots {
		switch snap.Kind {
		case entity.SnapshotKindAutomatic:
			auto++
		case entity.SnapshotKindManaged:
			managed++
		}
	}
	fmt.Fprintf(out, "\nTotal snapshots: %d\n", len(snapshots))
	fmt.Fprintf(out, "Automatic snapshots: %d\n", auto)
	fmt.Fprintf(out, "Tool-managed snapshots: %d\n", managed)
	fmt.Fprintf(out, "Manual snapshots: %d\n", len(snapshots)-auto-managed)
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	vms := newVMService(ctx)
	snap, err := vms.CreateSnapshot(ctx, &entity.CreateSnapshotRequest{
		VMName:       args[0],
		Platform:     flagSnapshotPlatform,
		SnapshotName: flagSnapshotName,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot created for VM %s: %s\n", snap.VMName, snap.Name)
	return nil
}

func runDeleteSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	vmName := args[0]
	names := args[1:]

	vms := newVMService(ctx)
	existing, err := vms.ListSnapshots(ctx, &entity.ListSnapshotsRequest{
		VMName:   vmName,
		Platform: flagDeletePlatform,
	})
	if err != nil {
		return err
	}

	// "all" 关键字删除全部快照
	if len(names) == 1 && strings.EqualFold(names[0], "all") {
		if len(existing) == 0 {
			fmt.Fprintf(out, "No snapshots found for VM: %s\n", vmName)
			return nil
		}

		fmt.Fprintf(out, "\nALL snapshots to delete from VM '%s':\n", vmName)
		for _, snap := range existing {
			fmt.Fprintf(out, "  - %s (created: %s)\n", snap.Name, formatCreatedAt(snap.CreatedAt))
		}

		if !flagDeleteConfirm {
			prompt := fmt.Sprintf("\nAre you sure you want to delete ALL %d snapshot(s)?", len(existing))
			if !confirm(cmd, prompt) {
				fmt.Fprintln(out, "Deletion cancelled.")
				return nil
			}
		}

		deleted, err := vms.DeleteAllSnapshots(ctx, &entity.DeleteAllSnapshotsRequest{
			VMName:   vmName,
			Platform: flagDeletePlatform,
			NoPurge:  flagDeleteNoPurge,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nDeleted %d of %d snapshots.\n", deleted, len(existing))
		return nil
	}

	byName := make(map[string]entity.Snapshot, len(existing))
	for _, snap := range existing {
		byName[snap.Name] = snap
	}

	var targets []entity.Snapshot
	for _, name := range names {
		snap, ok := byName[name]
		if !ok {
			fmt.Fprintf(out, "Snapshot not found: %s\n", name)
			continue
		}
		targets = append(targets, snap)
	}
	if len(targets) == 0 {
		fmt.Fprintln(out, "No valid snapshots to delete.")
		return nil
	}

	fmt.Fprintf(out, "\nSnapshots to delete from VM '%s':\n", vmName)
	for _, snap := range targets {
		fmt.Fprintf(out, "  - %s (created: %s)\n", snap.Name, formatCreatedAt(snap.CreatedAt))
	}

	if !flagDeleteConfirm {
		action := "delete and purge"
		if flagDeleteNoPurge {
			action = "delete"
		}
		prompt := fmt.Sprintf("\nAre you sure you want to %s %d snapshot(s)?", action, len(targets))
		if !confirm(cmd, prompt) {
			fmt.Fprintln(out, "Deletion cancelled.")
			return nil
		}
	}

	deleted := 0
	for _, snap := range targets {
		err := vms.DeleteSnapshot(ctx, &entity.DeleteSnapshotRequest{
			VMName:       vmName,
			Platform:     flagDeletePlatform,
			SnapshotName: snap.Name,
			NoPurge:      flagDeleteNoPurge,
		})
		if err != nil {
			fmt.Fprintf(out, "Failed to delete: %s\n", snap.Name)
			continue
		}
		deleted++
		fmt.Fprintf(out, "Deleted: %s\n", snap.Name)
	}

	fmt.Fprintf(out, "\nDeleted %d of %d snapshots.\n", deleted, len(targets))
	return nil
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	vms := newVMService(ctx)
	retention := app.cfg.SnapshotRetention()

	if flagCleanupDryRun {
		fmt.Fprintln(out, "Dry run - showing what snapshots would be deleted:")
		fmt.Fprintf(out, "Retention policy: keep last %d tool-managed snapshots per VM\n", retention)
		fmt.Fprintln(out, strings.Repeat("-", 60))

		plan := vms.PlanCleanup(ctx)
		if len(plan) == 0 {
			fmt.Fprintln(out, "No old tool-managed snapshots found that exceed retention policy.")
			return nil
		}

		// 按平台/虚拟机分组展示，保持计划中的先后顺序
		lastGroup := ""
		for _, d := range plan {
			group := fmt.Sprintf("%s/%s", d.Platform, d.VMName)
			if group != lastGroup {
				fmt.Fprintf(out, "\n  VM: %s (%s)\n", d.VMName, d.Platform)
				lastGroup = group
			}
			fmt.Fprintf(out, "    %s (created: %s)\n", d.Snapshot, formatCreatedAt(d.CreatedAt))
		}

		fmt.Fprintf(out, "\nTotal snapshots that would be deleted: %d\n", len(plan))
		return nil
	}

	fmt.Fprintln(out, "Starting VM snapshot cleanup...")
	fmt.Fprintf(out, "Retention policy: keep last %d tool-managed snapshots per VM\n", retention)

	summary := vms.CleanupOldSnapshots(ctx)

	fmt.Fprintln(out, "\nCleanup Summary:")
	fmt.Fprintf(out, "VMs processed: %d\n", summary.VMsProcessed)
	fmt.Fprintf(out, "Snapshots deleted: %d\n", summary.TotalDeleted)
	if len(summary.Errors) > 0 {
		fmt.Fprintf(out, "Errors: %d\n", len(summary.Errors))
		for _, e := range summary.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	if summary.TotalDeleted == 0 {
		fmt.Fprintln(out, "No cleanup needed - all snapshots within retention limits.")
	}
	return nil
}

// formatCreatedAt 格式化快照创建时间，缺失时显示 unknown
func formatCreatedAt(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

// kindTag 返回快照来源的表格短标记
func kindTag(kind entity.SnapshotKind) string {
	switch kind {
	case entity.SnapshotKindAutomatic:
		return "AUTO"
	case entity.SnapshotKindManaged:
		return "TOOL"
	default:
		return "MAN"
	}
}

// kindName 返回快照来源的完整名称
func kindName(kind entity.SnapshotKind) string {
	switch kind {
	case entity.SnapshotKindAutomatic:
		return "Automatic"
	case entity.SnapshotKindManaged:
		return "Tool-managed"
	default:
		return "Manual"
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimyag/vmsnap/internal/vmsnap"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

var (
	flagAutoStatusJSON   bool
	flagAutoHistoryLimit int
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Automatic snapshot management",
}

var autoEnableCmd = &cobra.Command{
	Use:   "enable <interval>",
	Short: "Enable automatic snapshots with the given interval",
	Long: `Enable automatic snapshots with the given interval.

The interval is a number with an optional unit m/h/d, minutes by default:

  vmsnap auto enable 30m    # every 30 minutes
  vmsnap auto enable 4h     # every 4 hours
  vmsnap auto enable 1d     # every day`,
	Args: cobra.ExactArgs(1),
	RunE: runAutoEnable,
}

var autoDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable automatic snapshots",
	RunE:  runAutoDisable,
}

var autoStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler daemon in the foreground",
	Long: `Run the scheduler daemon in the foreground.

The daemon periodically takes a snapshot of every VM on every available
platform and applies retention cleanup after each round. It also serves
the read-only HTTP status API on the configured listen address.`,
	RunE: runAutoStart,
}

var autoStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show automatic snapshot scheduler status",
	RunE:  runAutoStatus,
}

var autoRunNowCmd = &cobra.Command{
	Use:   "run-now",
	Short: "Run one snapshot round immediately",
	RunE:  runAutoRunNow,
}

var autoHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent snapshot rounds",
	RunE:  runAutoHistory,
}

func init() {
	autoStatusCmd.Flags().BoolVar(&flagAutoStatusJSON, "json", false, "Output in JSON format")
	autoHistoryCmd.Flags().IntVarP(&flagAutoHistoryLimit, "limit", "n", 20, "Number of rounds to show")

	autoCmd.AddCommand(autoEnableCmd)
	autoCmd.AddCommand(autoDisableCmd)
	autoCmd.AddCommand(autoStartCmd)
	autoCmd.AddCommand(autoStatusCmd)
	autoCmd.AddCommand(autoRunNowCmd)
	autoCmd.AddCommand(autoHistoryCmd)
}

func runAutoEnable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	handle := newScheduler(ctx, newVMService(ctx))
	defer handle.Close()

	if err := handle.scheduler.Enable(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintln(out, "Automatic snapshots enabled!")
	fmt.Fprintf(out, "Interval: %s\n", handle.scheduler.IntervalText())
	fmt.Fprintln(out, "Use 'vmsnap auto start' to start the scheduler daemon.")
	return nil
}

func runAutoDisable(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	handle := newScheduler(ctx, newVMService(ctx))
	defer handle.Close()

	if err := handle.scheduler.Disable(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Automatic snapshots disabled!")
	return nil
}

func runAutoStart(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// 启用检查直接读状态文件，守护进程稍后会重新加载同一份状态
	handle := newScheduler(ctx, newVMService(ctx))
	enabled := handle.scheduler.Enabled()
	handle.Close()
	if !enabled {
		fmt.Fprintln(out, "Automatic snapshots are not enabled.")
		fmt.Fprintln(out, "Use 'vmsnap auto enable <interval>' first.")
		return fmt.Errorf("scheduler is not enabled")
	}

	fmt.Fprintln(out, "Starting scheduler daemon...")
	fmt.Fprintln(out, "Press Ctrl+C to stop the daemon.")

	server, err := vmsnap.New(app.cfg)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func runAutoStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	handle := newScheduler(ctx, newVMService(ctx))
	defer handle.Close()

	st := handle.scheduler.State()

	if flagAutoStatusJSON {
		data, err := json.MarshalIndent(&entity.DescribeSchedulerResponse{
			State:    st,
			Interval: handle.scheduler.IntervalText(),
			Running:  handle.scheduler.Running(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, "\nAutomatic Snapshot Status")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	fmt.Fprintf(out, "\nEnabled: %t\n", st.Enabled)
	fmt.Fprintf(out, "Interval: %s\n", handle.scheduler.IntervalText())

	if st.LastRun != nil {
		fmt.Fprintf(out, "Last Run: %s\n", st.LastRun.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "Last Run: Never")
	}
	if st.NextRun != nil {
		fmt.Fprintf(out, "Next Run: %s\n", st.NextRun.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "Next Run: Not scheduled")
	}

	fmt.Fprintf(out, "\nVMs with snapshots taken: %d\n", len(st.VMLastSnapshot))

	if !st.Enabled {
		fmt.Fprintln(out, "\nTo enable automatic snapshots:")
		fmt.Fprintln(out, "  vmsnap auto enable <interval>")
		fmt.Fprintln(out, "  Example: vmsnap auto enable 4h")
	} else {
		fmt.Fprintln(out, "\nTo run the scheduler in the foreground:")
		fmt.Fprintln(out, "  vmsnap auto start")
	}
	return nil
}

func runAutoRunNow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	handle := newScheduler(ctx, newVMService(ctx))
	defer handle.Close()

	summary, err := handle.scheduler.RunNow(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Automatic snapshot run completed!")
	fmt.Fprintf(out, "VMs: %d, created: %d, failed: %d, cleaned up: %d\n",
		summary.VMsTotal, summary.Created, summary.CreateFailed, summary.CleanupDeleted)
	for _, e := range summary.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}
	return nil
}

func runAutoHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	handle := newScheduler(ctx, newVMService(ctx))
	defer handle.Close()

	rounds, err := handle.scheduler.ListRounds(ctx, flagAutoHistoryLimit)
	if err != nil {
		return err
	}
	if len(rounds) == 0 {
		fmt.Fprintln(out, "No snapshot rounds recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tTRIGGER\tSTARTED\tDURATION\tVMS\tCREATED\tFAILED\tCLEANED")
	for _, r := range rounds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RoundID,
			r.Trigger,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.VMsTotal,
			r.Created,
			r.CreateFailed,
			r.CleanupDeleted,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, r := range rounds {
		for _, e := range r.Errors {
			fmt.Fprintf(out, "%s: %s\n", r.RoundID, e)
		}
	}
	return nil
}

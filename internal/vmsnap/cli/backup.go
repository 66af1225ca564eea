package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jimyag/vmsnap/internal/vmsnap/service"
)

var (
	flagBackupName     string
	flagRestorePattern []string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "File backup management",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <source>...",
	Short: "Create a compressed backup archive from the given paths",
	Long: `Create a compressed backup archive from the given paths.

The archive is written to the configured backup destination as a
timestamped tar.gz together with a metadata sidecar file. Paths matching
the configured exclude patterns are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing backups",
	RunE:  runBackupList,
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <backup-name>",
	Short: "Verify backup integrity",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupVerify,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-name> <restore-path>",
	Short: "Restore a backup to the given path",
	Long: `Restore a backup to the given path.

Without --pattern the whole archive is extracted. With one or more
--pattern flags only members whose name contains a pattern are
extracted:

  vmsnap backup restore backup_20260825_143005 /tmp/restore
  vmsnap backup restore backup_20260825_143005 /tmp/restore --pattern .config`,
	Args: cobra.ExactArgs(2),
	RunE: runBackupRestore,
}

var backupContentsCmd = &cobra.Command{
	Use:   "contents <backup-name>",
	Short: "List the contents of a backup archive",
	RunE:  runBackupContents,
	Args:  cobra.ExactArgs(1),
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups that exceed the retention policy",
	RunE:  runBackupCleanup,
}

var backupStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backup storage status",
	RunE:  runBackupStatus,
}

func init() {
	backupCreateCmd.Flags().StringVarP(&flagBackupName, "name", "n", "", "Base name for the backup archive")
	backupRestoreCmd.Flags().StringArrayVar(&flagRestorePattern, "pattern", nil, "Only restore members containing this pattern (repeatable)")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupVerifyCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupContentsCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	backupCmd.AddCommand(backupStatusCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	backups, err := service.NewBackupService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	backup, err := backups.Create(ctx, args, flagBackupName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Backup created: %s\n", backup.Name)
	fmt.Fprintf(out, "Path: %s\n", backup.Path)
	fmt.Fprintf(out, "Files: %d, Size: %s\n", backup.FilesCount, humanize.IBytes(uint64(backup.SizeBytes)))
	return nil
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	backups := storage.ListBackups(ctx)
	if len(backups) == 0 {
		fmt.Fprintln(out, "No backups found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tFILES")
	for _, b := range backups {
		files := "-"
		if b.FilesCount > 0 {
			files = fmt.Sprintf("%d", b.FilesCount)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			b.Name,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			humanize.IBytes(uint64(b.SizeBytes)),
			files,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var total int64
	for _, b := range backups {
		total += b.SizeBytes
	}
	fmt.Fprintf(out, "\nTotal: %d backups, %s\n", len(backups), humanize.IBytes(uint64(total)))
	return nil
}

func runBackupVerify(cmd *cobra.Command, args []string) error {
	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}
	return storage.VerifyBackup(cmd.Context(), args[0])
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	restored, err := storage.Restore(ctx, args[0], args[1], flagRestorePattern)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Restored %d files to %s\n", restored, args[1])
	return nil
}

func runBackupContents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	entries, err := storage.Contents(ctx, args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "Backup archive is empty.")
		return nil
	}

	fmt.Fprintf(out, "Contents of %s:\n", args[0])
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tMODIFIED")
	for _, e := range entries {
		size := "-"
		if e.Type == "file" {
			size = humanize.IBytes(uint64(e.Size))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Name, e.Type, size, e.ModTime.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal: %d entries\n", len(entries))
	return nil
}

func runBackupCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	summary := storage.CleanupOldBackups(ctx)

	fmt.Fprintln(out, "Backup cleanup completed.")
	fmt.Fprintf(out, "Deleted: %d of %d backups (%s freed), kept %d\n",
		summary.Deleted, summary.TotalBackups, humanize.IBytes(uint64(summary.DeletedBytes)), summary.Kept)
	for _, e := range summary.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}
	return nil
}

func runBackupStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	storage, err := service.NewStorageService(app.cfg, app.notifier)
	if err != nil {
		return err
	}

	status := storage.Status(ctx)

	fmt.Fprintln(out, "\nBackup Storage Status")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintf(out, "\nDestination: %s\n", status.Path)
	fmt.Fprintf(out, "Backups: %d (%s)\n", status.BackupCount, humanize.IBytes(uint64(status.TotalSizeBytes)))
	if status.DiskTotalBytes > 0 {
		fmt.Fprintf(out, "Disk: %s free of %s (%.1f%% used)\n",
			humanize.IBytes(status.DiskFreeBytes), humanize.IBytes(status.DiskTotalBytes), status.UsagePercent)
	}
	for _, alert := range status.Alerts {
		fmt.Fprintf(out, "ALERT: %s\n", alert)
	}
	return nil
}

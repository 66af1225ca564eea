// Package cli 提供 vmsnap 的命令行界面
//
// 根命令只负责装载配置和通知输出，具体业务由各子命令按需构造服务完成。
// 所有子命令共享 --config 和 --verbose 两个全局选项。
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/platform"
	"github.com/jimyag/vmsnap/internal/vmsnap/repository"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/internal/vmsnap/state"
	"github.com/jimyag/vmsnap/pkg/notify"
)

var (
	flagConfig  string
	flagVerbose bool

	// app 在 PersistentPreRunE 中装配，子命令通过它获取配置和通知输出
	app struct {
		cfg      *config.Config
		notifier *notify.Logger
	}
)

var rootCmd = &cobra.Command{
	Use:   "vmsnap",
	Short: "vmsnap - VM snapshot management tool",
	Long: `vmsnap manages VM snapshots across Multipass, VirtualBox and VMware.

It creates and deletes snapshots through each platform's command line tool,
applies retention policies to tool-managed snapshots only, and can run a
scheduler daemon for automatic snapshot rounds. File backup archives with
checksums and retention are also supported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New(flagConfig)
		if err != nil {
			return err
		}
		if flagVerbose {
			cfg.Set("notifications.level", "debug")
		}

		level := zerolog.WarnLevel
		if flagVerbose {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &logger

		notifier, err := notify.New(notify.Config{
			Level:   cfg.NotifyLevel(),
			Console: cfg.NotifyConsole(),
			File:    cfg.NotifyFile(),
		})
		if err != nil {
			return err
		}

		app.cfg = cfg
		app.notifier = notifier
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.notifier != nil {
			_ = app.notifier.Close()
		}
	},
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(deleteSnapshotCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autoCmd)
	rootCmd.AddCommand(backupCmd)
}

// newVMService 探测可用平台并构造虚拟机服务
func newVMService(ctx context.Context) *service.VMService {
	candidates := []platform.Driver{
		platform.NewMultipass(platform.NewRunner(app.cfg.PlatformTimeout("multipass"))),
		platform.NewVirtualBox(platform.NewRunner(app.cfg.PlatformTimeout("virtualbox"))),
		platform.NewVMware(platform.NewRunner(app.cfg.PlatformTimeout("vmware"))),
	}
	return service.NewVMService(ctx, app.cfg, app.notifier, candidates)
}

// schedulerHandle 持有调度器以及它依赖的历史数据库连接
type schedulerHandle struct {
	scheduler *service.Scheduler
	repo      *repository.Repository
}

func (h *schedulerHandle) Close() {
	if h.repo != nil {
		_ = h.repo.Close()
	}
}

// newScheduler 构造调度器，历史数据库打不开时降级为不记录历史
func newScheduler(ctx context.Context, vms *service.VMService) *schedulerHandle {
	var rounds repository.RoundRepository
	repo, err := repository.New(app.cfg.HistoryDBPath())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("History database unavailable, rounds will not be recorded")
		repo = nil
	} else {
		rounds = repository.NewRoundRepository(repo.DB())
	}

	store := state.NewStore(app.cfg.SchedulerStatePath())
	return &schedulerHandle{
		scheduler: service.NewScheduler(ctx, app.cfg, store, vms, app.notifier, rounds),
		repo:      repo,
	}
}

// confirm 在终端上询问用户是否继续，默认否
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)

	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}

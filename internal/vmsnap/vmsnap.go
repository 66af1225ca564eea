// Package vmsnap 提供 vmsnap 守护进程的主入口和初始化逻辑
package vmsnap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jimmicro/grace"
	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/api"
	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/platform"
	"github.com/jimyag/vmsnap/internal/vmsnap/repository"
	"github.com/jimyag/vmsnap/internal/vmsnap/service"
	"github.com/jimyag/vmsnap/internal/vmsnap/state"
	"github.com/jimyag/vmsnap/pkg/notify"
)

type Server struct {
	cfg       *config.Config
	api       *api.API
	scheduler *service.Scheduler
	repo      *repository.Repository
	notifier  *notify.Logger
}

func New(cfg *config.Config) (*Server, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	ctx := context.Background()

	// 1. 创建通知输出
	notifier, err := notify.New(notify.Config{
		Level:   cfg.NotifyLevel(),
		Console: cfg.NotifyConsole(),
		File:    cfg.NotifyFile(),
	})
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	// 2. 探测虚拟化平台
	candidates := []platform.Driver{
		platform.NewMultipass(platform.NewRunner(cfg.PlatformTimeout("multipass"))),
		platform.NewVirtualBox(platform.NewRunner(cfg.PlatformTimeout("virtualbox"))),
		platform.NewVMware(platform.NewRunner(cfg.PlatformTimeout("vmware"))),
	}
	vmService := service.NewVMService(ctx, cfg, notifier, candidates)

	// 3. 轮次历史数据库，打不开时降级为不记录历史
	var rounds repository.RoundRepository
	repo, err := repository.New(cfg.HistoryDBPath())
	if err != nil {
		logger.Warn().Err(err).Msg("History database unavailable, rounds will not be recorded")
		repo = nil
	} else {
		rounds = repository.NewRoundRepository(repo.DB())
	}

	// 4. 调度器
	store := state.NewStore(cfg.SchedulerStatePath())
	scheduler := service.NewScheduler(ctx, cfg, store, vmService, notifier, rounds)

	// 5. 备份存储
	storageService, err := service.NewStorageService(cfg, notifier)
	if err != nil {
		return nil, err
	}

	// 6. 创建 API
	apiInstance, err := api.New(cfg.Address, vmService, scheduler, storageService)
	if err != nil {
		return nil, err
	}

	server := &Server{
		cfg:       cfg,
		api:       apiInstance,
		scheduler: scheduler,
		repo:      repo,
		notifier:  notifier,
	}
	return server, nil
}

func (s *Server) Run(ctx context.Context) error {
	// 使用 grace.Shepherd 管理服务生命周期
	services := []grace.Grace{
		s.api,
		s.scheduler,
	}

	shepherd := grace.NewShepherd(
		services,
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&zerologLogger{}),
	)

	shepherd.Start(ctx)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.api.Shutdown(ctx); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return err
		}
	}
	return s.notifier.Close()
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "vmsnap Server"
}

// zerologLogger 实现 grace.Logger 接口
type zerologLogger struct{}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Info()
	// 如果有参数，使用 Msgf 格式化消息
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Error()
	// 如果有参数，使用 Msgf 格式化消息
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

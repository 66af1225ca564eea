package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/config"
	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/repository"
	"github.com/jimyag/vmsnap/internal/vmsnap/state"
	"github.com/jimyag/vmsnap/pkg/idgen"
	"github.com/jimyag/vmsnap/pkg/interval"
	"github.com/jimyag/vmsnap/pkg/notify"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// Scheduler 自动快照调度器
// 状态以持久化文件为唯一事实来源，每次变更后整体重写；
// 守护循环串行执行快照轮次，轮次之间绝不重叠
type Scheduler struct {
	cfg      *config.Config
	store    *state.Store
	vms      *VMService
	notifier notify.Notifier
	idGen    *idgen.Generator
	rounds   repository.RoundRepository

	mu     sync.Mutex
	st     *entity.SchedulerState
	cancel context.CancelFunc

	running atomic.Bool
	now     func() time.Time
	tick    time.Duration
	backoff time.Duration
}

// NewScheduler 创建调度器并加载持久化状态
// rounds 允许为 nil，此时不记录轮次历史
func NewScheduler(
	ctx context.Context,
	cfg *config.Config,
	store *state.Store,
	vms *VMService,
	notifier notify.Notifier,
	rounds repository.RoundRepository,
) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		vms:      vms,
		notifier: notifier,
		idGen:    idgen.New(),
		rounds:   rounds,
		st:       store.Load(ctx),
		now:      time.Now,
		tick:     time.Second,
		backoff:  time.Minute,
	}
}

// Enable 启用自动快照
// 间隔表达式不合法时报错且不改变任何状态
func (s *Scheduler) Enable(ctx context.Context, spec string) error {
	minutes, err := interval.Parse(spec)
	if err != nil {
		return vmerror.WrapError(vmerror.ErrInvalidInterval, err.Error(), err)
	}

	s.mu.Lock()
	s.st.Enabled = true
	s.st.IntervalMinutes = minutes
	next := s.now().Add(time.Duration(minutes) * time.Minute)
	s.st.NextRun = &next
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notifier.Success(fmt.Sprintf("Automatic snapshots enabled with interval: %s", interval.Format(minutes)))
	return nil
}

// Disable 停用自动快照并清除下次执行时间
// 不会停止已经在运行的守护循环，循环的退出依赖其取消信号
func (s *Scheduler) Disable(ctx context.Context) error {
	s.mu.Lock()
	s.st.Enabled = false
	s.st.NextRun = nil
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notifier.Success("Automatic snapshots disabled")
	return nil
}

// Enabled 返回是否启用
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Enabled
}

// Running 返回守护循环是否正在运行
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// State 返回当前状态的拷贝
func (s *Scheduler) State() *entity.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// IntervalText 返回人类可读的间隔描述
func (s *Scheduler) IntervalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return interval.Format(s.st.IntervalMinutes)
}

// RunNow 立即同步执行一轮快照
// 只有启用状态下允许执行，未启用时不做任何快照操作
func (s *Scheduler) RunNow(ctx context.Context) (*entity.RoundSummary, error) {
	if !s.Enabled() {
		s.notifier.Error("Automatic snapshots are not enabled.")
		return nil, vmerror.ErrSchedulerDisabled
	}

	s.notifier.Info("Running automatic snapshots now...")
	return s.runRound(ctx, entity.RoundTriggerManual)
}

// StartDaemon 前台运行守护循环，直到 ctx 取消
// 要求调度器处于启用状态
func (s *Scheduler) StartDaemon(ctx context.Context) error {
	if !s.Enabled() {
		s.notifier.Error("Automatic snapshots are not enabled.")
		return vmerror.ErrSchedulerDisabled
	}

	s.running.Store(true)
	defer s.running.Store(false)

	s.notifier.Success(fmt.Sprintf("Scheduler daemon started (interval: %s)", s.IntervalText()))
	if next := s.State().NextRun; next != nil {
		s.notifier.Info(fmt.Sprintf("Next snapshot scheduled for: %s", next.Format("2006-01-02 15:04:05")))
	}

	for ctx.Err() == nil {
		if s.shouldRun() {
			if _, err := s.runRound(ctx, entity.RoundTriggerScheduled); err != nil {
				s.notifier.Error(fmt.Sprintf("Scheduler daemon error: %v", err))
				if !s.wait(ctx, s.backoff) {
					break
				}
				continue
			}
		}
		if !s.wait(ctx, s.untilNextRun()) {
			break
		}
	}

	s.notifier.Info("Snapshot scheduler daemon stopped")
	return nil
}

// shouldRun 判断是否到达执行时刻，next_run 缺失时视为立即执行
func (s *Scheduler) shouldRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.Enabled {
		return false
	}
	if s.st.NextRun == nil {
		return true
	}
	return !s.now().Before(*s.st.NextRun)
}

// untilNextRun 返回距下次执行的等待时长，至少一个轮询周期
func (s *Scheduler) untilNextRun() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.NextRun == nil {
		return s.tick
	}
	d := s.st.NextRun.Sub(s.now())
	if d < s.tick {
		return s.tick
	}
	return d
}

// wait 按轮询粒度分段休眠，取消延迟不超过一个粒度
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.tick):
		}
	}
	return ctx.Err() == nil
}

// runRound 执行一轮快照：为所有虚拟机创建共享时间戳的自动快照，
// 然后执行聚合清理，最后无论成败都推进计划并整体持久化
func (s *Scheduler) runRound(ctx context.Context, trigger entity.RoundTrigger) (*entity.RoundSummary, error) {
	roundID, err := s.idGen.GenerateRoundID()
	if err != nil {
		return nil, fmt.Errorf("generate round ID: %w", err)
	}

	startedAt := s.now()
	summary := &entity.RoundSummary{
		RoundID:   roundID,
		Trigger:   trigger,
		StartedAt: startedAt,
	}

	s.notifier.Info("Starting automatic snapshot creation...")

	for _, driver := range s.vms.Drivers() {
		// 同一轮内所有快照共享轮次开始时间
		name := entity.AutoSnapshotName(driver.NameStyle(), startedAt)
		for _, vm := range driver.ListVMs(ctx) {
			summary.VMsTotal++
			if driver.CreateSnapshot(ctx, vm.Name, name) {
				summary.Created++
				s.notifier.Info(fmt.Sprintf("Auto snapshot created for %s: %s", vm.Name, name))
				s.mu.Lock()
				s.st.VMLastSnapshot[vm.Name] = s.now()
				s.mu.Unlock()
			} else {
				summary.CreateFailed++
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("%s/%s: snapshot creation failed", driver.Platform(), vm.Name))
				s.notifier.Warning(fmt.Sprintf("Failed to create auto snapshot for %s", vm.Name))
			}
		}
	}

	s.notifier.Success(fmt.Sprintf("Auto snapshot round completed: %d/%d successful", summary.Created, summary.VMsTotal))
	if summary.CreateFailed > 0 {
		s.notifier.Warning(fmt.Sprintf("%d snapshots failed", summary.CreateFailed))
	}

	cleanup := s.vms.CleanupOldSnapshots(ctx)
	summary.CleanupDeleted = cleanup.TotalDeleted
	summary.Errors = append(summary.Errors, cleanup.Errors...)
	if cleanup.TotalDeleted > 0 {
		s.notifier.Info(fmt.Sprintf("Cleaned up %d old snapshots", cleanup.TotalDeleted))
	}

	now := s.now()
	s.mu.Lock()
	s.st.LastRun = &now
	next := now.Add(time.Duration(s.st.IntervalMinutes) * time.Minute)
	s.st.NextRun = &next
	s.persistLocked(ctx)
	s.mu.Unlock()

	summary.FinishedAt = s.now()
	s.recordRound(ctx, summary)
	return summary, nil
}

// persistLocked 整体重写状态文件
// 写入失败只记录日志，调用方继续使用内存中的状态
func (s *Scheduler) persistLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.st); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to persist scheduler state")
		s.notifier.Warning("Failed to save scheduler state")
	}
}

// recordRound 尽力写入轮次历史，失败只记录日志
func (s *Scheduler) recordRound(ctx context.Context, summary *entity.RoundSummary) {
	if s.rounds == nil {
		return
	}
	round, err := roundSummaryToModel(summary)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("round_id", summary.RoundID).Msg("Failed to convert round summary")
		return
	}
	if err = s.rounds.Create(ctx, round); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("round_id", summary.RoundID).Msg("Failed to record round history")
	}
}

// ListRounds 按开始时间倒序返回最近的轮次历史
func (s *Scheduler) ListRounds(ctx context.Context, limit int) ([]entity.RoundSummary, error) {
	if s.rounds == nil {
		return nil, nil
	}

	models, err := s.rounds.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	out := make([]entity.RoundSummary, 0, len(models))
	for _, m := range models {
		summary, err := roundModelToSummary(m)
		if err != nil {
			return nil, fmt.Errorf("convert round %s: %w", m.ID, err)
		}
		out = append(out, *summary)
	}
	return out, nil
}

// Run 实现 grace.Grace 接口
// 未启用时保持空转等待退出信号，不中断同进程的其他服务
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if !s.Enabled() {
		zerolog.Ctx(ctx).Info().Msg("Scheduler disabled, daemon loop idle")
		<-ctx.Done()
		return nil
	}
	return s.StartDaemon(ctx)
}

// Shutdown 实现 grace.Grace 接口
func (s *Scheduler) Shutdown(_ context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return nil
}

// Name 实现 grace.Grace 接口
func (s *Scheduler) Name() string {
	return "Snapshot Scheduler"
}

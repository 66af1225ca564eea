package entity

import "time"

// DefaultIntervalMinutes 未配置时的调度间隔（6 小时）
const DefaultIntervalMinutes = 360

// SchedulerState 调度器持久化状态，是跨进程重启的唯一事实来源。
// 每次状态变更后整体重写，不做部分更新。
type SchedulerState struct {
	Enabled         bool                 `json:"enabled"`          // 是否启用自动快照
	IntervalMinutes int                  `json:"interval_minutes"` // 快照间隔（分钟）
	LastRun         *time.Time           `json:"last_run"`         // 上次执行时间，从未执行时为 null
	NextRun         *time.Time           `json:"next_run"`         // 下次执行时间，未启用时为 null
	VMLastSnapshot  map[string]time.Time `json:"vm_last_snapshot"` // 虚拟机名称 -> 最近一次快照时间
}

// DefaultSchedulerState 返回状态文件缺失或损坏时使用的默认状态
func DefaultSchedulerState() *SchedulerState {
	return &SchedulerState{
		Enabled:         false,
		IntervalMinutes: DefaultIntervalMinutes,
		VMLastSnapshot:  map[string]time.Time{},
	}
}

// Clone 返回状态的深拷贝，避免调用方修改内部 map
func (s *SchedulerState) Clone() *SchedulerState {
	if s == nil {
		return nil
	}
	out := *s
	out.VMLastSnapshot = make(map[string]time.Time, len(s.VMLastSnapshot))
	for name, ts := range s.VMLastSnapshot {
		out.VMLastSnapshot[name] = ts
	}
	return &out
}

// RoundTrigger 轮次触发方式
type RoundTrigger string

const (
	RoundTriggerScheduled RoundTrigger = "scheduled" // 守护循环按计划触发
	RoundTriggerManual    RoundTrigger = "manual"    // run-now 手动触发
)

// RoundSummary 一轮快照执行的汇总结果
type RoundSummary struct {
	RoundID        string       `json:"round_id"`        // 轮次 ID
	Trigger        RoundTrigger `json:"trigger"`         // 触发方式
	StartedAt      time.Time    `json:"started_at"`      // 开始时间，同一轮内所有快照共享该时间戳
	FinishedAt     time.Time    `json:"finished_at"`     // 结束时间
	VMsTotal       int          `json:"vms_total"`       // 参与本轮的虚拟机数量
	Created        int          `json:"created"`         // 成功创建的快照数量
	CreateFailed   int          `json:"create_failed"`   // 创建失败的快照数量
	CleanupDeleted int          `json:"cleanup_deleted"` // 清理阶段删除的快照数量
	Errors         []string     `json:"errors"`          // 本轮累积的失败描述
}

// DescribeSchedulerRequest 查询调度器状态请求
type DescribeSchedulerRequest struct{}

type DescribeSchedulerResponse struct {
	State    *SchedulerState `json:"state"`
	Interval string          `json:"interval"` // 人类可读的间隔描述，如 "2h30m"
	Running  bool            `json:"running"`  // 守护循环是否正在运行
}

// ListRoundsRequest 查询历史轮次请求
type ListRoundsRequest struct {
	Limit int `json:"limit,omitempty"` // 返回数量上限，默认 20
}

type ListRoundsResponse struct {
	Rounds []RoundSummary `json:"rounds"`
}

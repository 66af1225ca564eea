// Package state 持久化调度器状态
//
// 状态文件是调度安排跨进程重启的唯一事实来源。每次变更整体重写，
// 用临时文件加重命名保证不会出现部分可见的写入。
// 同一个状态文件只允许一个守护进程写入，多实例并发写不在保护范围内。
package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// Store 调度器状态文件存取
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path 返回状态文件路径
func (s *Store) Path() string { return s.path }

// Load 读取状态
// 文件缺失时返回默认状态；文件损坏时记录警告并返回默认状态，
// 不会让调用方启动失败
func (s *Store) Load(ctx context.Context) *entity.SchedulerState {
	logger := zerolog.Ctx(ctx)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read scheduler state, using defaults")
		}
		return entity.DefaultSchedulerState()
	}

	st := entity.DefaultSchedulerState()
	if err = json.Unmarshal(data, st); err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("Scheduler state file corrupted, using defaults")
		return entity.DefaultSchedulerState()
	}
	if st.VMLastSnapshot == nil {
		st.VMLastSnapshot = map[string]time.Time{}
	}
	if st.IntervalMinutes <= 0 {
		st.IntervalMinutes = entity.DefaultIntervalMinutes
	}
	return st
}

// Save 整体重写状态文件
func (s *Store) Save(ctx context.Context, st *entity.SchedulerState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return vmerror.WrapError(vmerror.ErrPersistenceFailure, "failed to create state directory", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return vmerror.WrapError(vmerror.ErrPersistenceFailure, "failed to marshal scheduler state", err)
	}

	tempPath := s.path + ".tmp"
	if err = os.WriteFile(tempPath, data, 0644); err != nil {
		return vmerror.WrapError(vmerror.ErrPersistenceFailure, "failed to write scheduler state", err)
	}
	if err = os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return vmerror.WrapError(vmerror.ErrPersistenceFailure, "failed to replace scheduler state", err)
	}
	return nil
}

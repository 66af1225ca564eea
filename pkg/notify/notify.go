// Package notify 提供面向用户的通知输出
//
// 通知分为五个级别：Info、Warning、Error、Success、Failure。
// 所有方法都是 fire-and-forget 的，不返回错误，通知失败不会影响业务流程。
// 生产实现基于 zerolog，输出到控制台，也可以同时追加到日志文件。
package notify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Notifier 通知接收方
// Success 和 Failure 分别是带结果标记的 Info 和 Error
type Notifier interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	Success(msg string)
	Failure(msg string)
}

// Config 通知输出配置
type Config struct {
	// Level 最低输出级别：debug/info/warn/error，默认 info
	Level string
	// Console 是否输出到控制台，默认开启
	Console bool
	// File 追加写入的日志文件路径，为空则不写文件
	File string
}

// Logger 基于 zerolog 的 Notifier 实现
type Logger struct {
	log  zerolog.Logger
	file *os.File
}

var _ Notifier = (*Logger)(nil)

// New 创建通知输出器
// 控制台输出使用人类可读格式，文件输出使用 JSON 格式
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	writers := make([]io.Writer, 0, 2)
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	l := &Logger{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 1:
		out = writers[0]
	case 2:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l.log = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Info 输出普通信息
func (l *Logger) Info(msg string) {
	l.log.Info().Msg(msg)
}

// Warning 输出警告信息
func (l *Logger) Warning(msg string) {
	l.log.Warn().Msg(msg)
}

// Error 输出错误信息
func (l *Logger) Error(msg string) {
	l.log.Error().Msg(msg)
}

// Success 输出操作成功信息
func (l *Logger) Success(msg string) {
	l.log.Info().Msg("✅ " + msg)
}

// Failure 输出操作失败信息
func (l *Logger) Failure(msg string) {
	l.log.Error().Msg("❌ " + msg)
}

// Nop 返回丢弃所有通知的 Notifier，用于不需要输出的场景
func Nop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

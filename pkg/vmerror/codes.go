package vmerror

import "net/http"

// 快照生命周期管理的预定义错误
// 调用方通过 errors.Is 判断错误类别，通过 WrapError 附加上下文
var (
	// ErrNotFound 虚拟机或快照在任一可用平台上都不存在
	ErrNotFound = &Error{
		Code:       "NotFound",
		Message:    "The requested virtual machine or snapshot does not exist on any available platform.",
		HTTPStatus: http.StatusNotFound,
	}

	// ErrBackendUnavailable 平台的命令行工具不存在或探测失败
	ErrBackendUnavailable = &Error{
		Code:       "BackendUnavailable",
		Message:    "The platform command-line tool is not installed or not responding.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	// ErrCommandTimeout 外部命令超过了平台配置的超时时间
	ErrCommandTimeout = &Error{
		Code:       "CommandTimeout",
		Message:    "The platform command did not complete within the configured timeout.",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	// ErrCommandFailure 外部命令以非零状态退出
	ErrCommandFailure = &Error{
		Code:       "CommandFailure",
		Message:    "The platform command exited with a non-zero status.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrParseFailure 外部命令的输出无法按预期格式解析
	ErrParseFailure = &Error{
		Code:       "ParseFailure",
		Message:    "The platform command output could not be parsed.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrPersistenceFailure 状态文件或数据库写入失败
	ErrPersistenceFailure = &Error{
		Code:       "PersistenceFailure",
		Message:    "Persisting state to disk failed.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrInvalidInterval 调度间隔表达式不合法
	ErrInvalidInterval = &Error{
		Code:       "InvalidInterval",
		Message:    "The schedule interval expression is not valid. Use forms like 30m, 4h, 1d or a bare minute count.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrSchedulerDisabled 调度器未启用时请求了需要启用状态的操作
	ErrSchedulerDisabled = &Error{
		Code:       "SchedulerDisabled",
		Message:    "Automatic snapshots are disabled. Enable them before running this operation.",
		HTTPStatus: http.StatusConflict,
	}
)

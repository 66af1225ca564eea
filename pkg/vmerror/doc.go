// Package vmerror 提供带错误码的错误类型，用于所有服务的统一错误处理
//
// 错误响应格式为 JSON：
//
//	{
//	    "errors": [
//	        {
//	            "code": "NotFound",
//	            "message": "The virtual machine 'web-01' does not exist on any available platform."
//	        }
//	    ]
//	}
//
// 使用示例：
//
//	// 包装预定义错误并附加上下文
//	err := vmerror.WrapError(vmerror.ErrNotFound,
//	    fmt.Sprintf("The virtual machine '%s' does not exist on any available platform.", name), nil)
//
//	// 判断错误类别
//	if errors.Is(err, vmerror.ErrNotFound) {
//	    // ...
//	}
//
//	// 在 gin 中使用
//	c.JSON(err.HTTPStatus, vmerror.NewErrorResponse(err))
//
// 预定义错误变量（可在代码中直接使用）：
//
//   - ErrNotFound: 虚拟机或快照不存在
//   - ErrBackendUnavailable: 平台命令行工具不可用
//   - ErrCommandTimeout: 外部命令超时
//   - ErrCommandFailure: 外部命令非零退出
//   - ErrParseFailure: 命令输出解析失败
//   - ErrPersistenceFailure: 状态持久化失败
//   - ErrInvalidInterval: 调度间隔表达式不合法
//   - ErrSchedulerDisabled: 调度器未启用
package vmerror

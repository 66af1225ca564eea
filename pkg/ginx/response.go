package ginx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/vmsnap/pkg/vmerror"
)

// renderResponse 渲染 JSON 响应
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}

	// 基本类型特殊处理
	switch v := response.(type) {
	case string:
		ctx.String(http.StatusOK, v)
		return
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		ctx.JSON(http.StatusOK, gin.H{"value": v})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// renderError 渲染错误响应
// 如果 err 是 *vmerror.Error 或 *vmerror.ErrorResponse，直接序列化错误对象
// 否则使用默认的错误格式
func renderError(ctx *gin.Context, statusCode int, err error) {
	// 检查是否是 vmerror.Error
	if vmErr, ok := err.(*vmerror.Error); ok {
		// 使用错误对象中定义的 HTTP 状态码
		if vmErr.HTTPStatus > 0 {
			statusCode = vmErr.HTTPStatus
		}
		// 创建 ErrorResponse 用于序列化
		ctx.JSON(statusCode, vmerror.NewErrorResponse(vmErr))
		return
	}

	// 检查是否是 vmerror.ErrorResponse
	if errorResp, ok := err.(*vmerror.ErrorResponse); ok {
		// 从第一个错误中获取 HTTP 状态码（如果有）
		if len(errorResp.Errors) > 0 && errorResp.Errors[0].HTTPStatus > 0 {
			statusCode = errorResp.Errors[0].HTTPStatus
		}
		ctx.JSON(statusCode, errorResp)
		return
	}

	// 默认错误格式
	ctx.JSON(statusCode, gin.H{"error": err.Error()})
}

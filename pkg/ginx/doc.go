// Package ginx 提供 gin 框架的 handler 适配器，支持自动参数绑定和响应处理
//
// 请求和响应均为 JSON 格式，参数绑定优先级为
// JSON Body > URI 参数 > Query 参数 > Form 参数。
// 如果 handler 返回的 error 是 *vmerror.Error，响应状态码取其 HTTPStatus。
//
// 支持多种 handler 函数签名：
//
//	// 1. 有参数，有返回值，有 error
//	func(c *gin.Context, args *Args) (resp, error)
//
//	// 2. 有参数，只有 error
//	func(c *gin.Context, args *Args) error
//
//	// 3. 无参数，有返回值，有 error
//	func(c *gin.Context) (resp, error)
//
//	// 4. 无参数，只有 error
//	func(c *gin.Context) error
//
//	// 5. 无参数，只有返回值
//	func(c *gin.Context) resp
//
//	// 6. 无参数，无返回值
//	func(c *gin.Context)
//
// 使用示例：
//
//	router := gin.Default()
//
//	// 有参数，有返回值，有 error
//	router.POST("/snapshots", ginx.Adapt5(func(c *gin.Context, args *CreateSnapshotArgs) (*Snapshot, error) {
//	    return &Snapshot{...}, nil
//	}))
//
//	// 有参数，只有 error
//	router.DELETE("/snapshots/:name", ginx.Adapt4(func(c *gin.Context, args *DeleteSnapshotArgs) error {
//	    return nil
//	}))
//
//	// 无参数，有返回值
//	router.GET("/health", ginx.Adapt2(func(c *gin.Context) string {
//	    return "ok"
//	}))
package ginx

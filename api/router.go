package api

import (
	"github.com/fyerfyer/doc-validate-system/api/handler"
	"github.com/fyerfyer/doc-validate-system/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	validateHandler *handler.ValidateHandler,
	downloadHandler *handler.DownloadHandler,
	systemHandler *handler.SystemHandler,
) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.Default()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 结果文件下载，与轮询端返回的下载地址保持一致
	router.GET("/download/:filename", downloadHandler.DownloadArtifact)

	// 创建API分组
	api := router.Group("/api")
	{
		// 提交文档核对 - POST /api/validate
		api.POST("/validate", validateHandler.ValidateDocument)

		// 查询核对进度 - GET /api/progress/:key
		api.GET("/progress/:key", validateHandler.GetProgress)

		// 作业管理API
		jobGroup := api.Group("/jobs")
		{
			// 获取作业列表 - GET /api/jobs
			jobGroup.GET("", validateHandler.ListJobs)

			// 获取作业详情 - GET /api/jobs/:key
			jobGroup.GET("/:key", validateHandler.GetJob)
		}

		// 系统诊断 - GET /api/diagnostics
		api.GET("/diagnostics", systemHandler.Diagnostics)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

package api

import (
	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/container"
	"github.com/bkk513/misspelling-platform/internal/websocket"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, c *container.Container) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(RateLimitMiddleware(100, 200))

	// 健康检查
	var progressPinger Pinger
	if rs := c.RedisProgress(); rs != nil {
		progressPinger = rs
	}
	healthController := NewHealthController(c.DB(), progressPinger)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 任务事件流
	router.GET("/ws/tasks", websocket.WebSocketHandler(c.Hub()))

	taskController := NewTaskController(c.TaskService(), c.TaskEventService(), c.TimeseriesService(), c.ArtifactService())
	lexiconController := NewLexiconController(c.LexiconService())
	seriesController := NewSeriesController(c.NgramService())
	auditController := NewAuditController(c.AuditLogService())

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// 任务管理路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("/word-analysis", taskController.CreateWordAnalysis)
			tasks.POST("/simulation", taskController.CreateSimulation)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)
			tasks.DELETE("/:id", taskController.Delete)
			tasks.GET("/:id/events", taskController.Events)
			tasks.GET("/:id/series", taskController.Series)
			tasks.GET("/:id/points", taskController.Points)
			tasks.GET("/:id/artifacts", taskController.Artifacts)
		}

		// 词库路由
		lexicon := v1.Group("/lexicon")
		{
			lexicon.POST("/resolve", lexiconController.Resolve)
			lexicon.GET("/terms", lexiconController.ListTerms)
			lexicon.GET("/terms/:id/variants", lexiconController.ListVariants)
		}

		// 外部词频序列路由
		series := v1.Group("/series")
		{
			series.POST("/pull", seriesController.Pull)
			series.GET("/:id/points", seriesController.Points)
		}

		// 管理员路由
		admin := v1.Group("/admin")
		{
			admin.POST("/lexicon/variants", lexiconController.AdminAddVariants)
			admin.GET("/audit-logs", auditController.List)
		}
	}

	return router
}

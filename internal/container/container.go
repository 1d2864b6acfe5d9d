package container

import (
	"fmt"
	"time"

	"github.com/bkk513/misspelling-platform/internal/config"
	"github.com/bkk513/misspelling-platform/internal/database"
	"github.com/bkk513/misspelling-platform/internal/metrics"
	"github.com/bkk513/misspelling-platform/internal/provider/llm"
	"github.com/bkk513/misspelling-platform/internal/provider/ngram"
	"github.com/bkk513/misspelling-platform/internal/queue"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/bkk513/misspelling-platform/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、队列、服务与外部客户端
type Container struct {
	db            *gorm.DB
	hub           *websocket.Hub
	dispatcher    *queue.Dispatcher
	redisProgress *queue.RedisProgressStore
	collector     *metrics.Collector

	taskSvc     service.TaskService
	eventSvc    service.TaskEventService
	auditSvc    service.AuditLogService
	lexiconSvc  service.LexiconService
	ngramSvc    service.NgramService
	tsSvc       service.TimeseriesService
	artifactSvc service.ArtifactService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件并启动后台 worker
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 初始化数据库(带重试机制)
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// 3. 初始化仓储
	taskRepo := repository.NewTaskRepository(db)
	eventRepo := repository.NewTaskEventRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	lexRepo := repository.NewLexiconRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	// 4. 初始化进度存储
	// Redis 未启用时退化到进程内存储,语义不变
	var redisProgress *queue.RedisProgressStore
	var progress service.ProgressStore
	if cfg.Redis.Enabled {
		redisProgress = queue.NewRedisProgressStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		progress = redisProgress
	} else {
		progress = queue.NewMemoryProgressStore()
	}

	// 5. 初始化服务
	auditSvc := service.NewAuditLogService(auditRepo)
	eventSvc := service.NewTaskEventService(eventRepo, hub)

	var suggester service.VariantSuggester
	if cfg.LLM.APIKey != "" {
		suggester = llm.NewClient(cfg.LLM)
	}
	lexiconSvc := service.NewLexiconService(lexRepo, suggester, auditSvc, logger)
	ngramSvc := service.NewNgramService(ngram.NewClient(cfg.Ngram), lexRepo, seriesRepo, auditSvc, logger)
	tsSvc := service.NewTimeseriesService(lexRepo, seriesRepo, logger)
	artifactSvc := service.NewArtifactService(cfg.Worker.OutputsRoot, artifactRepo, logger)

	// 6. 初始化任务调度
	// 执行器依赖任务服务,只能在调度器创建后再绑定
	dispatcher := queue.NewDispatcher(cfg.Worker.Workers, cfg.Worker.QueueSize, logger)
	taskSvc := service.NewTaskService(db, taskRepo, eventSvc, auditSvc, eventRepo, artifactRepo, seriesRepo, dispatcher, progress, logger)
	runner := queue.NewRunner(taskRepo, taskSvc, lexiconSvc, ngramSvc, tsSvc, artifactSvc, logger)
	dispatcher.SetHandler(runner)
	dispatcher.Start()

	// 7. 启动指标收集
	collector := metrics.NewCollector(db, 15*time.Second)
	collector.Start()

	return &Container{
		db:            db,
		hub:           hub,
		dispatcher:    dispatcher,
		redisProgress: redisProgress,
		collector:     collector,
		taskSvc:       taskSvc,
		eventSvc:      eventSvc,
		auditSvc:      auditSvc,
		lexiconSvc:    lexiconSvc,
		ngramSvc:      ngramSvc,
		tsSvc:         tsSvc,
		artifactSvc:   artifactSvc,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Dispatcher 获取任务调度器
func (c *Container) Dispatcher() *queue.Dispatcher {
	return c.dispatcher
}

// RedisProgress 获取 Redis 进度存储,未启用时返回 nil
func (c *Container) RedisProgress() *queue.RedisProgressStore {
	return c.redisProgress
}

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService {
	return c.taskSvc
}

// TaskEventService 获取任务事件服务
func (c *Container) TaskEventService() service.TaskEventService {
	return c.eventSvc
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditSvc
}

// LexiconService 获取词库服务
func (c *Container) LexiconService() service.LexiconService {
	return c.lexiconSvc
}

// NgramService 获取外部词频拉取服务
func (c *Container) NgramService() service.NgramService {
	return c.ngramSvc
}

// TimeseriesService 获取合成时间序列服务
func (c *Container) TimeseriesService() service.TimeseriesService {
	return c.tsSvc
}

// ArtifactService 获取任务产物服务
func (c *Container) ArtifactService() service.ArtifactService {
	return c.artifactSvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.redisProgress != nil {
		_ = c.redisProgress.Close()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

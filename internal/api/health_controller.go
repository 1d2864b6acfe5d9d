package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger 可探活的外部依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController 健康检查控制器
type HealthController struct {
	db       *gorm.DB
	progress Pinger
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, progress Pinger) *HealthController {
	return &HealthController{
		db:       db,
		progress: progress,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 检查进度存储 (Redis)
	if c.progress != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
		if err := c.progress.Ping(pingCtx); err != nil {
			// 进度存储是建议性的,不拖垮整体健康状态
			checks["progress_store"] = "unhealthy: " + err.Error()
		} else {
			checks["progress_store"] = "healthy"
		}
		cancel()
	} else {
		checks["progress_store"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

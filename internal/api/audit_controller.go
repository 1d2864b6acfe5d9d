package api

import (
	"strconv"

	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/gin-gonic/gin"
)

// AuditController 审计日志控制器
type AuditController struct {
	auditService service.AuditLogService
}

// NewAuditController 创建审计日志控制器
func NewAuditController(auditService service.AuditLogService) *AuditController {
	return &AuditController{auditService: auditService}
}

// List 列出最近的审计记录,支持按动作过滤
func (c *AuditController) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	action := ctx.Query("action")
	entries, err := c.auditService.List(ctx.Request.Context(), action, limit)
	if err != nil {
		ServiceError(ctx, err, "list audit logs")
		return
	}

	Success(ctx, entries)
}

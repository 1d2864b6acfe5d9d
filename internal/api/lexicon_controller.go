package api

import (
	"net/http"
	"strconv"

	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/gin-gonic/gin"
)

// LexiconController 词库控制器
type LexiconController struct {
	lexiconService service.LexiconService
}

// NewLexiconController 创建词库控制器
func NewLexiconController(lexiconService service.LexiconService) *LexiconController {
	return &LexiconController{lexiconService: lexiconService}
}

// resolveRequest 变体解析请求
type resolveRequest struct {
	Word string `json:"word" binding:"required"`
	K    int    `json:"k"`
}

// Resolve 解析词条的拼写变体
func (c *LexiconController) Resolve(ctx *gin.Context) {
	var req resolveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.K < 1 {
		req.K = 5
	}

	result, err := c.lexiconService.Resolve(ctx.Request.Context(), req.Word, req.K)
	if err != nil {
		ServiceError(ctx, err, "resolve variants")
		return
	}

	Success(ctx, result)
}

// AdminAddVariants 管理员写入变体
func (c *LexiconController) AdminAddVariants(ctx *gin.Context) {
	var req service.AdminVariantsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Actor == "" {
		req.Actor = ctx.GetHeader("X-Actor")
	}

	result, err := c.lexiconService.AdminAddVariants(ctx.Request.Context(), &req)
	if err != nil {
		ServiceError(ctx, err, "add variants")
		return
	}

	Success(ctx, result)
}

// ListTerms 列出词条
func (c *LexiconController) ListTerms(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	terms, err := c.lexiconService.ListTerms(ctx.Request.Context(), limit)
	if err != nil {
		ServiceError(ctx, err, "list terms")
		return
	}

	Success(ctx, terms)
}

// ListVariants 列出词条的全部变体
func (c *LexiconController) ListVariants(ctx *gin.Context) {
	termID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid term ID", err.Error())
		return
	}

	term, variants, err := c.lexiconService.ListVariants(ctx.Request.Context(), uint(termID))
	if err != nil {
		ServiceError(ctx, err, "list variants")
		return
	}

	Success(ctx, gin.H{"term": term, "variants": variants})
}

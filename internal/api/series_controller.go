package api

import (
	"net/http"
	"strconv"

	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/gin-gonic/gin"
)

// SeriesController 外部词频序列控制器
type SeriesController struct {
	ngramService service.NgramService
}

// NewSeriesController 创建外部词频序列控制器
func NewSeriesController(ngramService service.NgramService) *SeriesController {
	return &SeriesController{ngramService: ngramService}
}

// Pull 同步拉取词频序列
// 整批命中内容寻址缓存时直接返回,否则穿透到外部数据源
func (c *SeriesController) Pull(ctx *gin.Context) {
	var req service.PullRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.ngramService.Pull(ctx.Request.Context(), &req)
	if err != nil {
		ServiceError(ctx, err, "pull frequency series")
		return
	}

	Success(ctx, result)
}

// Points 按序列主键读取数据点
func (c *SeriesController) Points(ctx *gin.Context) {
	seriesID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid series ID", err.Error())
		return
	}

	series, points, err := c.ngramService.SeriesPoints(ctx.Request.Context(), uint(seriesID))
	if err != nil {
		ServiceError(ctx, err, "load series points")
		return
	}

	rows := make([]gin.H, 0, len(points))
	for _, p := range points {
		rows = append(rows, gin.H{"t": p.T, "value": p.Value})
	}
	Success(ctx, gin.H{"series": series, "points": rows})
}

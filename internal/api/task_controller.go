package api

import (
	"net/http"
	"strconv"

	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/gin-gonic/gin"
)

// TaskController 任务控制器
type TaskController struct {
	taskService     service.TaskService
	eventService    service.TaskEventService
	tsService       service.TimeseriesService
	artifactService service.ArtifactService
}

// NewTaskController 创建任务控制器
func NewTaskController(
	taskService service.TaskService,
	eventService service.TaskEventService,
	tsService service.TimeseriesService,
	artifactService service.ArtifactService,
) *TaskController {
	return &TaskController{
		taskService:     taskService,
		eventService:    eventService,
		tsService:       tsService,
		artifactService: artifactService,
	}
}

// CreateWordAnalysis 创建词频分析任务
func (c *TaskController) CreateWordAnalysis(ctx *gin.Context) {
	var req service.WordAnalysisRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.SubmitWordAnalysis(ctx.Request.Context(), &req)
	if err != nil {
		ServiceError(ctx, err, "create task")
		return
	}

	Success(ctx, task)
}

// CreateSimulation 创建模拟任务
func (c *TaskController) CreateSimulation(ctx *gin.Context) {
	var req service.SimulationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.SubmitSimulation(ctx.Request.Context(), &req)
	if err != nil {
		ServiceError(ctx, err, "create task")
		return
	}

	Success(ctx, task)
}

// Get 获取任务详情
func (c *TaskController) Get(ctx *gin.Context) {
	task, err := c.taskService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ServiceError(ctx, err, "get task")
		return
	}

	Success(ctx, task)
}

// List 获取最近任务列表
func (c *TaskController) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	tasks, err := c.taskService.List(ctx.Request.Context(), limit)
	if err != nil {
		ServiceError(ctx, err, "list tasks")
		return
	}

	Success(ctx, tasks)
}

// Delete 删除任务
// 活跃任务返回 409,派生数据级联清理后任务行保留为墓碑
func (c *TaskController) Delete(ctx *gin.Context) {
	actor := ctx.GetHeader("X-Actor")
	if err := c.taskService.Delete(ctx.Request.Context(), ctx.Param("id"), actor); err != nil {
		ServiceError(ctx, err, "delete task")
		return
	}

	Success(ctx, gin.H{"deleted": true})
}

// Events 获取任务事件流
func (c *TaskController) Events(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "200"))
	events, err := c.eventService.ListByTask(ctx.Request.Context(), ctx.Param("id"), limit)
	if err != nil {
		ServiceError(ctx, err, "list task events")
		return
	}

	Success(ctx, events)
}

// Series 获取任务名下的序列概要
func (c *TaskController) Series(ctx *gin.Context) {
	series, err := c.tsService.TaskSeries(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ServiceError(ctx, err, "list task series")
		return
	}

	Success(ctx, series)
}

// Points 获取任务里单个标签的序列点位
func (c *TaskController) Points(ctx *gin.Context) {
	variant := ctx.DefaultQuery("variant", "correct")
	seriesID, points, err := c.tsService.TaskPoints(ctx.Request.Context(), ctx.Param("id"), variant)
	if err != nil {
		ServiceError(ctx, err, "load task points")
		return
	}

	rows := make([]gin.H, 0, len(points))
	for _, p := range points {
		rows = append(rows, gin.H{"t": p.T, "value": p.Value})
	}
	Success(ctx, gin.H{
		"series_id": seriesID,
		"variant":   variant,
		"points":    rows,
	})
}

// Artifacts 获取任务产物列表
func (c *TaskController) Artifacts(ctx *gin.Context) {
	artifacts, err := c.artifactService.ListByTask(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ServiceError(ctx, err, "list task artifacts")
		return
	}

	Success(ctx, artifacts)
}

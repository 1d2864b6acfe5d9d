package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/sirupsen/logrus"
)

// wordAnalysisParams 词频分析任务参数
type wordAnalysisParams struct {
	Word         string   `json:"word"`
	Variants     []string `json:"variants"`
	VariantCount int      `json:"variant_count"`
	Corpus       string   `json:"corpus"`
	StartYear    int      `json:"start_year"`
	EndYear      int      `json:"end_year"`
	Smoothing    int      `json:"smoothing"`
}

// simulationParams 模拟任务参数
type simulationParams struct {
	Word  string `json:"word"`
	Steps int    `json:"steps"`
}

// Runner 任务执行器
// 驱动任务走完生命周期:外部数据源失败时词频分析降级到合成序列,
// 只有不可恢复的错误才把任务推入失败终态
type Runner struct {
	taskRepo    repository.TaskRepository
	taskSvc     service.TaskService
	lexiconSvc  service.LexiconService
	ngramSvc    service.NgramService
	tsSvc       service.TimeseriesService
	artifactSvc service.ArtifactService
	logger      *logrus.Logger
}

// NewRunner 创建任务执行器
func NewRunner(
	taskRepo repository.TaskRepository,
	taskSvc service.TaskService,
	lexiconSvc service.LexiconService,
	ngramSvc service.NgramService,
	tsSvc service.TimeseriesService,
	artifactSvc service.ArtifactService,
	logger *logrus.Logger,
) *Runner {
	return &Runner{
		taskRepo:    taskRepo,
		taskSvc:     taskSvc,
		lexiconSvc:  lexiconSvc,
		ngramSvc:    ngramSvc,
		tsSvc:       tsSvc,
		artifactSvc: artifactSvc,
		logger:      logger,
	}
}

// Handle 执行一个任务
func (r *Runner) Handle(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("task_id", job.TaskID).Errorf("Task panicked: %v\n%s", rec, debug.Stack())
			_ = r.taskSvc.MarkFailure(ctx, job.TaskID, fmt.Sprintf("task panicked: %v", rec))
		}
	}()

	if err := r.taskSvc.MarkRunning(ctx, job.TaskID); err != nil {
		r.logger.WithField("task_id", job.TaskID).Warnf("Task not runnable: %v", err)
		return
	}

	task, err := r.taskRepo.FindByID(job.TaskID)
	if err != nil {
		_ = r.taskSvc.MarkFailure(ctx, job.TaskID, fmt.Sprintf("failed to load task: %v", err))
		return
	}

	switch task.TaskType {
	case model.TaskTypeWordAnalysis:
		r.runWordAnalysis(ctx, task)
	case model.TaskTypeSimulation:
		r.runSimulation(ctx, task)
	default:
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("unknown task type %q", task.TaskType))
	}
}

// runWordAnalysis 执行词频分析任务
func (r *Runner) runWordAnalysis(ctx context.Context, task *model.TaskModel) {
	var params wordAnalysisParams
	if err := json.Unmarshal(task.ParamsJSON, &params); err != nil {
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("invalid task params: %v", err))
		return
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 10)

	variants := params.Variants
	if len(variants) == 0 {
		resolved, err := r.lexiconSvc.Resolve(ctx, params.Word, params.VariantCount)
		if err != nil {
			_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("failed to resolve variants: %v", err))
			return
		}
		variants = resolved.Variants
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 40)

	pulled, err := r.ngramSvc.Pull(ctx, &service.PullRequest{
		Term:      params.Word,
		Variants:  variants,
		StartYear: params.StartYear,
		EndYear:   params.EndYear,
		Corpus:    params.Corpus,
		Smoothing: params.Smoothing,
	})
	if err != nil {
		var fetchErr *service.ExternalFetchError
		if !errors.As(err, &fetchErr) {
			_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("frequency pull failed: %v", err))
			return
		}
		// 外部数据源不可用,降级到合成序列
		r.logger.WithFields(logrus.Fields{
			"task_id": task.ID,
			"word":    params.Word,
		}).Warnf("External source unavailable, falling back to synthetic series: %s", fetchErr.Message)
		_ = r.taskSvc.ReportProgress(ctx, task.ID, 60)

		bundle, stubErr := r.tsSvc.PersistWordAnalysisStub(ctx, task.ID, params.Word, variants)
		if stubErr != nil {
			_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("synthetic fallback failed: %v", stubErr))
			return
		}
		_ = r.taskSvc.ReportProgress(ctx, task.ID, 95)
		if err := r.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{
			"source_kind":     "stub",
			"fallback_reason": fetchErr.Message,
			"word":            bundle.Word,
			"variants":        variants,
			"series":          bundleSummary(bundle),
		}); err != nil {
			r.logger.WithField("task_id", task.ID).Warnf("Failed to finish task: %v", err)
		}
		return
	}

	_ = r.taskSvc.ReportProgress(ctx, task.ID, 95)
	series := make([]map[string]interface{}, 0, len(pulled.Series))
	for _, s := range pulled.Series {
		series = append(series, map[string]interface{}{
			"label":     s.Label,
			"series_id": s.SeriesID,
			"points":    len(s.Points),
		})
	}
	if err := r.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{
		"source_kind": "gbnc",
		"cached":      pulled.Cached,
		"word":        pulled.Term,
		"variants":    variants,
		"corpus":      pulled.Corpus,
		"start_year":  pulled.StartYear,
		"end_year":    pulled.EndYear,
		"smoothing":   pulled.Smoothing,
		"series":      series,
	}); err != nil {
		r.logger.WithField("task_id", task.ID).Warnf("Failed to finish task: %v", err)
	}
}

// runSimulation 执行模拟任务
func (r *Runner) runSimulation(ctx context.Context, task *model.TaskModel) {
	var params simulationParams
	if err := json.Unmarshal(task.ParamsJSON, &params); err != nil {
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("invalid task params: %v", err))
		return
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 10)

	resolved, err := r.lexiconSvc.Resolve(ctx, params.Word, 5)
	if err != nil {
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("failed to resolve variants: %v", err))
		return
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 35)

	bundle, err := r.tsSvc.PersistSimulationStub(ctx, task.ID, params.Word, resolved.Variants, params.Steps)
	if err != nil {
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("simulation failed: %v", err))
		return
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 70)

	artifact, err := r.artifactSvc.WriteSeriesCSV(ctx, task.ID, bundle)
	if err != nil {
		_ = r.taskSvc.MarkFailure(ctx, task.ID, fmt.Sprintf("failed to write artifact: %v", err))
		return
	}
	_ = r.taskSvc.ReportProgress(ctx, task.ID, 95)

	if err := r.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{
		"source_kind": "stub",
		"word":        bundle.Word,
		"steps":       bundle.Count,
		"variants":    resolved.Variants,
		"series":      bundleSummary(bundle),
		"artifact": map[string]interface{}{
			"kind":       artifact.Kind,
			"path":       artifact.Path,
			"size_bytes": artifact.SizeBytes,
		},
	}); err != nil {
		r.logger.WithField("task_id", task.ID).Warnf("Failed to finish task: %v", err)
	}
}

// bundleSummary 合成序列的结果概要
func bundleSummary(bundle *service.StubBundle) []map[string]interface{} {
	series := make([]map[string]interface{}, 0, len(bundle.Series))
	for _, s := range bundle.Series {
		series = append(series, map[string]interface{}{
			"label":     s.Label,
			"series_id": s.SeriesID,
			"scale":     s.Scale,
			"points":    len(s.Points),
		})
	}
	return series
}

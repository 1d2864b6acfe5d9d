package queue_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bkk513/misspelling-platform/internal/database"
	"github.com/bkk513/misspelling-platform/internal/model"
	ngramprovider "github.com/bkk513/misspelling-platform/internal/provider/ngram"
	"github.com/bkk513/misspelling-platform/internal/queue"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// scriptedFetcher 可注入失败的假外部数据源
type scriptedFetcher struct {
	calls int
	err   error
}

func (f *scriptedFetcher) Fetch(ctx context.Context, term string, variants []string, startYear, endYear int, corpus string, smoothing int) (*ngramprovider.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	labels := append([]string{term}, variants...)
	series := make([]ngramprovider.VariantSeries, 0, len(labels))
	for _, label := range labels {
		points := make([]ngramprovider.Point, 0, endYear-startYear+1)
		for year := startYear; year <= endYear; year++ {
			points = append(points, ngramprovider.Point{Year: year, Value: 0.002})
		}
		series = append(series, ngramprovider.VariantSeries{Variant: label, Points: points})
	}
	return &ngramprovider.FetchResult{
		Source:   "gbnc",
		Provider: "gbnc",
		Unit:     "relative_frequency",
		Term:     term,
		Corpus:   corpus,
		Series:   series,
	}, nil
}

// noopEnqueuer 提交即成功,执行由测试直接驱动
type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(taskID, taskType string) error { return nil }

// runnerTestEnv 任务执行器集成测试环境
type runnerTestEnv struct {
	db      *gorm.DB
	fetcher *scriptedFetcher
	taskSvc service.TaskService
	runner  *queue.Runner
}

func newRunnerTestEnv(t *testing.T) *runnerTestEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := quietLogger()
	taskRepo := repository.NewTaskRepository(db)
	eventRepo := repository.NewTaskEventRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	lexRepo := repository.NewLexiconRepository(db)

	auditSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	eventSvc := service.NewTaskEventService(eventRepo, nil)
	lexiconSvc := service.NewLexiconService(lexRepo, nil, auditSvc, logger)
	fetcher := &scriptedFetcher{}
	ngramSvc := service.NewNgramService(fetcher, lexRepo, seriesRepo, auditSvc, logger)
	tsSvc := service.NewTimeseriesService(lexRepo, seriesRepo, logger)
	artifactSvc := service.NewArtifactService(t.TempDir(), artifactRepo, logger)

	taskSvc := service.NewTaskService(db, taskRepo, eventSvc, auditSvc, eventRepo, artifactRepo, seriesRepo, noopEnqueuer{}, queue.NewMemoryProgressStore(), logger)
	runner := queue.NewRunner(taskRepo, taskSvc, lexiconSvc, ngramSvc, tsSvc, artifactSvc, logger)
	return &runnerTestEnv{db: db, fetcher: fetcher, taskSvc: taskSvc, runner: runner}
}

// TestRunner_WordAnalysis_HeuristicVariants 测试建议器缺席时词频分析走启发式变体并成功
func TestRunner_WordAnalysis_HeuristicVariants(t *testing.T) {
	env := newRunnerTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{
		Word:         "seperate",
		VariantCount: 5,
	})
	require.NoError(t, err)

	env.runner.Handle(ctx, queue.Job{TaskID: task.ID, TaskType: task.TaskType})

	final, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSuccess, final.Status)

	result, ok := final.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gbnc", result["source_kind"])

	variants, ok := result["variants"].([]interface{})
	require.True(t, ok)
	assert.Len(t, variants, 5)
	assert.NotContains(t, variants, "seperate")
}

// TestRunner_WordAnalysis_StubFallback 测试外部数据源失败时降级合成序列仍然成功
func TestRunner_WordAnalysis_StubFallback(t *testing.T) {
	env := newRunnerTestEnv(t)
	env.fetcher.err = errors.New("dial tcp: i/o timeout (Authorization: Bearer sk-secret)")
	ctx := context.Background()

	task, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "definately"})
	require.NoError(t, err)

	env.runner.Handle(ctx, queue.Job{TaskID: task.ID, TaskType: task.TaskType})

	final, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSuccess, final.Status)

	result, ok := final.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "stub", result["source_kind"])

	reason, _ := result["fallback_reason"].(string)
	assert.NotContains(t, reason, "sk-secret")
	assert.Contains(t, reason, "Bearer ***")

	series, ok := result["series"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, series)
}

// TestRunner_Simulation_WritesArtifact 测试模拟任务生成序列并登记 CSV 产物
func TestRunner_Simulation_WritesArtifact(t *testing.T) {
	env := newRunnerTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "recieve", Steps: 45})
	require.NoError(t, err)

	env.runner.Handle(ctx, queue.Job{TaskID: task.ID, TaskType: task.TaskType})

	final, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSuccess, final.Status)

	result, ok := final.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "stub", result["source_kind"])
	assert.Equal(t, float64(45), result["steps"])

	artifact, ok := result["artifact"].(map[string]interface{})
	require.True(t, ok)
	path, _ := artifact["path"].(string)
	require.NotEmpty(t, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

// TestRunner_UnknownTaskType 测试未知任务类型进入失败终态
func TestRunner_UnknownTaskType(t *testing.T) {
	env := newRunnerTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "seperate"})
	require.NoError(t, err)

	// 直接改库模拟坏数据
	require.NoError(t, env.db.Model(&model.TaskModel{}).Where("id = ?", task.ID).Update("task_type", "unknown").Error)

	env.runner.Handle(ctx, queue.Job{TaskID: task.ID, TaskType: "unknown"})

	final, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailure, final.Status)
	assert.Contains(t, final.ErrorText, "unknown task type")
}

package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bkk513/misspelling-platform/internal/database"
	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/bkk513/misspelling-platform/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// 迁移数据库
	err = database.Migrate(db)
	require.NoError(t, err)

	return db
}

// testLogger 静默日志记录器
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeEnqueuer 记录投递调用的假调度器
type fakeEnqueuer struct {
	taskIDs []string
	err     error
}

func (f *fakeEnqueuer) Enqueue(taskID, taskType string) error {
	if f.err != nil {
		return f.err
	}
	f.taskIDs = append(f.taskIDs, taskID)
	return nil
}

// fakeProgress 进程内进度存储
type fakeProgress struct {
	values map[string]int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{values: make(map[string]int)}
}

func (f *fakeProgress) Set(ctx context.Context, taskID string, progress int) error {
	f.values[taskID] = progress
	return nil
}

func (f *fakeProgress) Get(ctx context.Context, taskID string) (int, bool, error) {
	v, ok := f.values[taskID]
	return v, ok, nil
}

func (f *fakeProgress) Clear(ctx context.Context, taskID string) error {
	delete(f.values, taskID)
	return nil
}

// taskTestEnv 任务服务测试环境
type taskTestEnv struct {
	db         *gorm.DB
	taskSvc    service.TaskService
	eventSvc   service.TaskEventService
	auditSvc   service.AuditLogService
	seriesRepo repository.SeriesRepository
	lexRepo    repository.LexiconRepository
	artifacts  repository.ArtifactRepository
	enqueuer   *fakeEnqueuer
	progress   *fakeProgress
}

func newTaskTestEnv(t *testing.T) *taskTestEnv {
	db := setupTestDB(t)
	taskRepo := repository.NewTaskRepository(db)
	eventRepo := repository.NewTaskEventRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	lexRepo := repository.NewLexiconRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	eventSvc := service.NewTaskEventService(eventRepo, nil)
	auditSvc := service.NewAuditLogService(auditRepo)
	enqueuer := &fakeEnqueuer{}
	progress := newFakeProgress()
	taskSvc := service.NewTaskService(db, taskRepo, eventSvc, auditSvc, eventRepo, artifactRepo, seriesRepo, enqueuer, progress, testLogger())

	return &taskTestEnv{
		db:         db,
		taskSvc:    taskSvc,
		eventSvc:   eventSvc,
		auditSvc:   auditSvc,
		seriesRepo: seriesRepo,
		lexRepo:    lexRepo,
		artifacts:  artifactRepo,
		enqueuer:   enqueuer,
		progress:   progress,
	}
}

// TestTaskService_SubmitWordAnalysis 测试提交词频分析任务
func TestTaskService_SubmitWordAnalysis(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{
		Word:         "  Seperate ",
		VariantCount: 20,
		Smoothing:    99,
	})
	require.NoError(t, err)

	assert.Equal(t, model.TaskStateQueued, task.Status)
	assert.Equal(t, model.TaskTypeWordAnalysis, task.TaskType)
	assert.Equal(t, "word-analysis: seperate", task.DisplayName)

	// 参数规范化并限幅
	params, ok := task.Params.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "seperate", params["word"])
	assert.EqualValues(t, 12, params["variant_count"])
	assert.EqualValues(t, 50, params["smoothing"])
	assert.Equal(t, "eng_2019", params["corpus"])

	// 任务已投递
	assert.Equal(t, []string{task.ID}, env.enqueuer.taskIDs)

	// 入队事件已记录
	events, err := env.eventSvc.ListByTask(ctx, task.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.TaskStateQueued, events[0].EventType)
}

// TestTaskService_SubmitWordAnalysis_Invalid 测试非法提交
func TestTaskService_SubmitWordAnalysis_Invalid(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	var validationErr *service.ValidationError

	_, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "   "})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "separate", Corpus: "klingon"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "separate", StartYear: 2000, EndYear: 1990})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

// TestTaskService_EnqueueFailure 测试投递失败时任务转入失败终态
func TestTaskService_EnqueueFailure(t *testing.T) {
	env := newTaskTestEnv(t)
	env.enqueuer.err = errors.New("queue is full")
	ctx := context.Background()

	_, err := env.taskSvc.SubmitWordAnalysis(ctx, &service.WordAnalysisRequest{Word: "separate"})
	require.Error(t, err)

	tasks, err := env.taskSvc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskStateFailure, tasks[0].Status)
	assert.Contains(t, tasks[0].ErrorText, "enqueue")
}

// TestTaskService_StateMachine_LegalFlow 测试合法生命周期
func TestTaskService_StateMachine_LegalFlow(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate", Steps: 45})
	require.NoError(t, err)

	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	require.NoError(t, env.taskSvc.ReportProgress(ctx, task.ID, 50))

	running, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateRunning, running.Status)
	require.NotNil(t, running.Progress)
	assert.Equal(t, 50, *running.Progress)

	require.NoError(t, env.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{"source_kind": "stub"}))

	done, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSuccess, done.Status)
	result, ok := done.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "stub", result["source_kind"])

	// 事件序列单调递增且顺序正确
	events, err := env.eventSvc.ListByTask(ctx, task.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.TaskStateQueued, events[0].EventType)
	assert.Equal(t, model.TaskStateRunning, events[1].EventType)
	assert.Equal(t, model.TaskStateSuccess, events[2].EventType)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
	assert.Less(t, events[1].Sequence, events[2].Sequence)
}

// TestTaskService_MarkRunning_Idempotent 测试重复进入执行态是幂等的
func TestTaskService_MarkRunning_Idempotent(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)

	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))

	events, err := env.eventSvc.ListByTask(ctx, task.ID, 10)
	require.NoError(t, err)
	running := 0
	for _, e := range events {
		if e.EventType == model.TaskStateRunning {
			running++
		}
	}
	assert.Equal(t, 1, running, "repeated MarkRunning should record a single running event")
}

// TestTaskService_MarkSuccess_RequiresRunning 测试排队中的任务不能直接成功
func TestTaskService_MarkSuccess_RequiresRunning(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)

	// QUEUED 只能走向 RUNNING 或 FAILURE
	err = env.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{"ok": true})
	require.Error(t, err)
	var transitionErr *service.IllegalTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, model.TaskStateQueued, transitionErr.From)

	queued, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateQueued, queued.Status)

	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	require.NoError(t, env.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{"ok": true}))
}

// TestTaskService_TerminalStateImmutable 测试终态不可覆盖
func TestTaskService_TerminalStateImmutable(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)
	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	require.NoError(t, env.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{"ok": true}))

	var transitionErr *service.IllegalTransitionError

	err = env.taskSvc.MarkFailure(ctx, task.ID, "late failure")
	require.Error(t, err)
	assert.True(t, errors.As(err, &transitionErr))

	err = env.taskSvc.MarkRunning(ctx, task.ID)
	require.Error(t, err)
	assert.True(t, errors.As(err, &transitionErr))

	done, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateSuccess, done.Status)
	assert.Empty(t, done.ErrorText)
}

// TestTaskService_MarkFailure_Sanitizes 测试失败原因脱敏与截断
func TestTaskService_MarkFailure_Sanitizes(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)
	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))

	long := strings.Repeat("x", model.MaxErrorTextLen+1000)
	require.NoError(t, env.taskSvc.MarkFailure(ctx, task.ID, "Authorization: Bearer sk-secret.token_1 refused; "+long))

	failed, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateFailure, failed.Status)
	assert.NotContains(t, failed.ErrorText, "sk-secret")
	assert.Contains(t, failed.ErrorText, "Bearer ***")
	assert.LessOrEqual(t, len(failed.ErrorText), model.MaxErrorTextLen)
}

// TestTaskService_Delete_ActiveRejected 测试活跃任务拒绝删除
func TestTaskService_Delete_ActiveRejected(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)

	err = env.taskSvc.Delete(ctx, task.ID, "admin")
	assert.ErrorIs(t, err, service.ErrTaskActive)

	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	err = env.taskSvc.Delete(ctx, task.ID, "admin")
	assert.ErrorIs(t, err, service.ErrTaskActive)
}

// TestTaskService_Delete_CascadesAndTombstones 测试删除级联清理并保留墓碑
func TestTaskService_Delete_CascadesAndTombstones(t *testing.T) {
	env := newTaskTestEnv(t)
	ctx := context.Background()

	task, err := env.taskSvc.SubmitSimulation(ctx, &service.SimulationRequest{Word: "separate"})
	require.NoError(t, err)
	require.NoError(t, env.taskSvc.MarkRunning(ctx, task.ID))
	require.NoError(t, env.taskSvc.MarkSuccess(ctx, task.ID, map[string]interface{}{"ok": true}))

	// 挂接派生数据: 序列与产物
	term, err := env.lexRepo.EnsureTerm("separate", "custom", "en")
	require.NoError(t, err)
	source, err := env.seriesRepo.EnsureDataSource("synthetic", "day", nil)
	require.NoError(t, err)
	points := []repository.SeriesPoint{{T: mustTime(t, "2020-01-01"), Value: 1.5}}
	series := &model.SeriesModel{
		TermID:      term.ID,
		SourceID:    source.ID,
		TaskID:      task.ID,
		Granularity: "day",
		WindowStart: mustTime(t, "2020-01-01"),
		WindowEnd:   mustTime(t, "2020-01-01"),
		Units:       "relative_frequency",
	}
	require.NoError(t, env.seriesRepo.CreateSeries(series, points))
	require.NoError(t, env.artifacts.Save(&model.ArtifactModel{TaskID: task.ID, Kind: "csv", Path: "/tmp/out.csv"}))

	require.NoError(t, env.taskSvc.Delete(ctx, task.ID, "admin"))

	// 墓碑保留
	tombstone, err := env.taskSvc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateDeleted, tombstone.Status)

	// 派生数据被清理
	events, err := env.eventSvc.ListByTask(ctx, task.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	remaining, err := env.seriesRepo.ListByTask(task.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	artifacts, err := env.artifacts.ListByTask(task.ID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	// 审计留痕
	entries, err := env.auditSvc.List(ctx, "", 10)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if e.Action == model.AuditActionTaskDeleted && e.TargetID == task.ID {
			found = true
		}
	}
	assert.True(t, found, "TASK_DELETED audit entry expected")

	// 重复删除是幂等的
	require.NoError(t, env.taskSvc.Delete(ctx, task.ID, "admin"))
}

// mustTime 解析测试日期
func mustTime(t *testing.T, value string) time.Time {
	ts, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return ts
}

// TestTaskService_Get_NotFound 测试查询不存在的任务
func TestTaskService_Get_NotFound(t *testing.T) {
	env := newTaskTestEnv(t)

	_, err := env.taskSvc.Get(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
}

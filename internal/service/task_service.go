package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bkk513/misspelling-platform/internal/lexicon"
	"github.com/bkk513/misspelling-platform/internal/metrics"
	"github.com/bkk513/misspelling-platform/internal/model"
	ngramprovider "github.com/bkk513/misspelling-platform/internal/provider/ngram"
	"github.com/bkk513/misspelling-platform/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// displayName 由任务类型和参数拼装展示名
func displayName(taskType string, params interface{}) string {
	payload, ok := params.(map[string]interface{})
	if !ok {
		return taskType
	}
	switch taskType {
	case model.TaskTypeWordAnalysis:
		if word, ok := payload["word"].(string); ok && strings.TrimSpace(word) != "" {
			return fmt.Sprintf("%s: %s", taskType, strings.TrimSpace(word))
		}
	case model.TaskTypeSimulation:
		parts := make([]string, 0, 2)
		if word, ok := payload["word"].(string); ok && word != "" {
			parts = append(parts, fmt.Sprintf("word=%s", word))
		}
		if steps, ok := payload["steps"]; ok {
			parts = append(parts, fmt.Sprintf("steps=%v", steps))
		}
		if len(parts) > 0 {
			return fmt.Sprintf("%s: %s", taskType, strings.Join(parts, " "))
		}
	}
	return taskType
}

// Enqueuer 任务投递协作方接口
type Enqueuer interface {
	Enqueue(taskID, taskType string) error
}

// ProgressStore 进度存储协作方接口
// 进度是建议性的,丢失或过期不影响任务状态机
type ProgressStore interface {
	Set(ctx context.Context, taskID string, progress int) error
	Get(ctx context.Context, taskID string) (int, bool, error)
	Clear(ctx context.Context, taskID string) error
}

// WordAnalysisRequest 词频分析任务提交请求
type WordAnalysisRequest struct {
	Word         string   `json:"word" binding:"required"`
	Variants     []string `json:"variants"`
	VariantCount int      `json:"variant_count"`
	Corpus       string   `json:"corpus"`
	StartYear    int      `json:"start_year"`
	EndYear      int      `json:"end_year"`
	Smoothing    int      `json:"smoothing"`
}

// SimulationRequest 模拟任务提交请求
type SimulationRequest struct {
	Word  string `json:"word" binding:"required"`
	Steps int    `json:"steps"`
}

// TaskPayload 任务详情载荷
type TaskPayload struct {
	ID          string      `json:"id"`
	TaskType    string      `json:"task_type"`
	DisplayName string      `json:"display_name"`
	Status      string      `json:"status"`
	Params      interface{} `json:"params"`
	Result      interface{} `json:"result,omitempty"`
	ErrorText   string      `json:"error_text,omitempty"`
	Progress    *int        `json:"progress,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TaskService 任务服务
// 任务生命周期 QUEUED -> RUNNING -> SUCCESS/FAILURE,删除后保留
// DELETED 墓碑;终态写入一次后不可覆盖
type TaskService interface {
	SubmitWordAnalysis(ctx context.Context, req *WordAnalysisRequest) (*TaskPayload, error)
	SubmitSimulation(ctx context.Context, req *SimulationRequest) (*TaskPayload, error)
	Get(ctx context.Context, taskID string) (*TaskPayload, error)
	List(ctx context.Context, limit int) ([]*TaskPayload, error)
	Delete(ctx context.Context, taskID, actor string) error
	MarkRunning(ctx context.Context, taskID string) error
	ReportProgress(ctx context.Context, taskID string, progress int) error
	MarkSuccess(ctx context.Context, taskID string, result interface{}) error
	MarkFailure(ctx context.Context, taskID, errorText string) error
}

// taskService 任务服务实现
type taskService struct {
	db           *gorm.DB
	taskRepo     repository.TaskRepository
	eventSvc     TaskEventService
	auditSvc     AuditLogService
	eventRepo    repository.TaskEventRepository
	artifactRepo repository.ArtifactRepository
	seriesRepo   repository.SeriesRepository
	enqueuer     Enqueuer
	progress     ProgressStore
	logger       *logrus.Logger
}

// NewTaskService 创建任务服务
// enqueuer 与 progress 可以为 nil,分别表示同步场景与不记录进度
func NewTaskService(
	db *gorm.DB,
	taskRepo repository.TaskRepository,
	eventSvc TaskEventService,
	auditSvc AuditLogService,
	eventRepo repository.TaskEventRepository,
	artifactRepo repository.ArtifactRepository,
	seriesRepo repository.SeriesRepository,
	enqueuer Enqueuer,
	progress ProgressStore,
	logger *logrus.Logger,
) TaskService {
	return &taskService{
		db:           db,
		taskRepo:     taskRepo,
		eventSvc:     eventSvc,
		auditSvc:     auditSvc,
		eventRepo:    eventRepo,
		artifactRepo: artifactRepo,
		seriesRepo:   seriesRepo,
		enqueuer:     enqueuer,
		progress:     progress,
		logger:       logger,
	}
}

// SubmitWordAnalysis 提交词频分析任务
func (s *taskService) SubmitWordAnalysis(ctx context.Context, req *WordAnalysisRequest) (*TaskPayload, error) {
	word := lexicon.Normalize(req.Word)
	if word == "" {
		return nil, NewValidationError("word", "word is required")
	}
	count := req.VariantCount
	if count < 1 {
		count = 5
	}
	if count > 12 {
		count = 12
	}
	corpus := req.Corpus
	if corpus == "" {
		corpus = "eng_2019"
	}
	if _, ok := ngramprovider.Corpora[corpus]; !ok {
		return nil, NewValidationError("corpus", fmt.Sprintf("unknown corpus %q", corpus))
	}
	startYear, endYear := req.StartYear, req.EndYear
	if startYear == 0 {
		startYear = 1900
	}
	if endYear == 0 {
		endYear = 2019
	}
	if endYear < startYear {
		return nil, NewValidationError("end_year", "end_year must not precede start_year")
	}
	smoothing := req.Smoothing
	if smoothing < 0 {
		smoothing = 0
	}
	if smoothing > 50 {
		smoothing = 50
	}

	params := map[string]interface{}{
		"word":          word,
		"variants":      lexicon.NormalizeAll(req.Variants),
		"variant_count": count,
		"corpus":        corpus,
		"start_year":    startYear,
		"end_year":      endYear,
		"smoothing":     smoothing,
	}
	return s.submit(ctx, model.TaskTypeWordAnalysis, params)
}

// SubmitSimulation 提交模拟任务
func (s *taskService) SubmitSimulation(ctx context.Context, req *SimulationRequest) (*TaskPayload, error) {
	word := lexicon.Normalize(req.Word)
	if word == "" {
		return nil, NewValidationError("word", "word is required")
	}
	steps := req.Steps
	if steps < 30 {
		steps = 30
	}
	if steps > 90 {
		steps = 90
	}
	params := map[string]interface{}{
		"word":  word,
		"steps": steps,
	}
	return s.submit(ctx, model.TaskTypeSimulation, params)
}

// submit 落库 QUEUED 任务并投递执行
// 投递失败的任务立即转入 FAILURE 而不是滞留在队列态
func (s *taskService) submit(ctx context.Context, taskType string, params map[string]interface{}) (*TaskPayload, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task params: %w", err)
	}
	task := &model.TaskModel{
		ID:         uuid.New().String(),
		TaskType:   taskType,
		Status:     model.TaskStateQueued,
		ParamsJSON: paramsJSON,
	}
	if err := task.Validate(); err != nil {
		return nil, NewValidationError("task", err.Error())
	}
	if err := s.taskRepo.Upsert(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	metrics.RecordTaskCreated(taskType)
	_ = s.eventSvc.RecordQueued(ctx, task.ID, taskType, params)

	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(task.ID, taskType); err != nil {
			reason := SanitizeExternalError(fmt.Sprintf("failed to enqueue task: %v", err))
			if markErr := s.MarkFailure(ctx, task.ID, reason); markErr != nil {
				s.logger.WithField("task_id", task.ID).Warnf("Failed to fail unenqueued task: %v", markErr)
			}
			return nil, fmt.Errorf("failed to enqueue task %s: %w", task.ID, err)
		}
	}

	fresh, err := s.taskRepo.FindByID(task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return s.payload(ctx, fresh), nil
}

// Get 查询任务详情
func (s *taskService) Get(ctx context.Context, taskID string) (*TaskPayload, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return s.payload(ctx, task), nil
}

// List 查询最近任务
func (s *taskService) List(ctx context.Context, limit int) ([]*TaskPayload, error) {
	tasks, err := s.taskRepo.List(limit)
	if err != nil {
		return nil, err
	}
	payloads := make([]*TaskPayload, 0, len(tasks))
	for _, task := range tasks {
		payloads = append(payloads, s.payload(ctx, task))
	}
	return payloads, nil
}

// Delete 删除任务
// 活跃任务拒绝删除;派生数据在同一事务里级联清理,任务行降级为
// DELETED 墓碑而不是物理删除
func (s *taskService) Delete(ctx context.Context, taskID, actor string) error {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	if task.IsActive() {
		return ErrTaskActive
	}
	if task.Status == model.TaskStateDeleted {
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.eventRepo.DeleteByTask(tx, taskID); err != nil {
			return err
		}
		if err := s.artifactRepo.DeleteByTask(tx, taskID); err != nil {
			return err
		}
		if err := s.seriesRepo.DeleteByTask(tx, taskID); err != nil {
			return err
		}
		return tx.Model(&model.TaskModel{}).
			Where("id = ?", taskID).
			Updates(map[string]interface{}{
				"status":     model.TaskStateDeleted,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}

	if s.progress != nil {
		_ = s.progress.Clear(ctx, taskID)
	}
	var actorPtr *string
	if actor != "" {
		actorPtr = &actor
	}
	_ = s.auditSvc.Record(ctx, model.AuditActionTaskDeleted, "task", taskID, map[string]interface{}{
		"task_type":   task.TaskType,
		"prev_status": task.Status,
	}, actorPtr)
	s.logger.WithField("task_id", taskID).Info("Task deleted")
	return nil
}

// MarkRunning 任务进入执行态
// 重复调用是幂等的;终态任务拒绝回退
func (s *taskService) MarkRunning(ctx context.Context, taskID string) error {
	ok, err := s.taskRepo.Transition(taskID, []string{model.TaskStateQueued}, model.TaskStateRunning, nil)
	if err != nil {
		return fmt.Errorf("failed to mark task running: %w", err)
	}
	if ok {
		task, err := s.taskRepo.FindByID(taskID)
		if err == nil {
			_ = s.eventSvc.RecordRunning(ctx, taskID, task.TaskType)
		}
		return nil
	}

	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	if task.Status == model.TaskStateRunning {
		return nil
	}
	return &IllegalTransitionError{TaskID: taskID, From: task.Status, To: model.TaskStateRunning}
}

// ReportProgress 上报任务进度
// 仅写入建议性进度存储,永不触碰状态机
func (s *taskService) ReportProgress(ctx context.Context, taskID string, progress int) error {
	if s.progress == nil {
		return nil
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return s.progress.Set(ctx, taskID, progress)
}

// MarkSuccess 任务进入成功终态
// 只允许从 RUNNING 进入;QUEUED 只能走向 RUNNING 或 FAILURE
func (s *taskService) MarkSuccess(ctx context.Context, taskID string, result interface{}) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode task result: %w", err)
	}
	ok, err := s.taskRepo.Transition(taskID,
		[]string{model.TaskStateRunning},
		model.TaskStateSuccess,
		map[string]interface{}{"result_json": resultJSON, "error_text": ""})
	if err != nil {
		return fmt.Errorf("failed to mark task success: %w", err)
	}
	if !ok {
		return s.illegalTerminal(taskID, model.TaskStateSuccess)
	}
	metrics.RecordTaskFinished(model.TaskStateSuccess)
	task, err := s.taskRepo.FindByID(taskID)
	if err == nil {
		_ = s.eventSvc.RecordSuccess(ctx, taskID, task.TaskType)
	}
	if s.progress != nil {
		_ = s.progress.Clear(ctx, taskID)
	}
	return nil
}

// MarkFailure 任务进入失败终态
// 错误文本先脱敏再截断存储
func (s *taskService) MarkFailure(ctx context.Context, taskID, errorText string) error {
	text := bearerTokenRe.ReplaceAllString(errorText, "Bearer ***")
	if len(text) > model.MaxErrorTextLen {
		text = text[:model.MaxErrorTextLen]
	}
	ok, err := s.taskRepo.Transition(taskID,
		[]string{model.TaskStateQueued, model.TaskStateRunning},
		model.TaskStateFailure,
		map[string]interface{}{"error_text": text})
	if err != nil {
		return fmt.Errorf("failed to mark task failure: %w", err)
	}
	if !ok {
		return s.illegalTerminal(taskID, model.TaskStateFailure)
	}
	metrics.RecordTaskFinished(model.TaskStateFailure)
	task, err := s.taskRepo.FindByID(taskID)
	if err == nil {
		_ = s.eventSvc.RecordFailure(ctx, taskID, task.TaskType, text)
	}
	_ = s.auditSvc.RecordError(ctx, "task_runner", "task failed", map[string]interface{}{
		"task_id": taskID,
		"error":   truncateText(text, 300),
	})
	if s.progress != nil {
		_ = s.progress.Clear(ctx, taskID)
	}
	return nil
}

// illegalTerminal 终态转移失败时定位真实原因
func (s *taskService) illegalTerminal(taskID, to string) error {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	return &IllegalTransitionError{TaskID: taskID, From: task.Status, To: to}
}

// payload 组装任务详情载荷
// 参数与结果可能被历史写入双重编码过,统一规整为对象
func (s *taskService) payload(ctx context.Context, task *model.TaskModel) *TaskPayload {
	params := normalizeJSONish(task.ParamsJSON)
	p := &TaskPayload{
		ID:          task.ID,
		TaskType:    task.TaskType,
		DisplayName: displayName(task.TaskType, params),
		Status:      task.Status,
		Params:      params,
		ErrorText:   task.ErrorText,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if len(task.ResultJSON) > 0 {
		p.Result = normalizeJSONish(task.ResultJSON)
	}
	if s.progress != nil && task.Status == model.TaskStateRunning {
		if value, ok, err := s.progress.Get(ctx, task.ID); err == nil && ok {
			p.Progress = &value
		}
	}
	return p
}

// truncateText 截断文本到最大长度
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

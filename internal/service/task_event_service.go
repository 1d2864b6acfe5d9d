package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
)

// TaskNotifier 任务事件推送接口
// 由 websocket hub 实现,推送失败不影响事件落库
type TaskNotifier interface {
	BroadcastToTask(taskID string, message []byte)
}

// TaskEventService 任务事件服务
// 每个任务的有序只追加日志,插入顺序即序列顺序
type TaskEventService interface {
	Record(ctx context.Context, taskID, eventType, message string, meta map[string]interface{}) error
	RecordQueued(ctx context.Context, taskID, taskType string, params map[string]interface{}) error
	RecordRunning(ctx context.Context, taskID, taskType string) error
	RecordSuccess(ctx context.Context, taskID, taskType string) error
	RecordFailure(ctx context.Context, taskID, taskType, errorText string) error
	ListByTask(ctx context.Context, taskID string, limit int) ([]*TaskEventPayload, error)
}

// TaskEventPayload 任务事件读取负载
type TaskEventPayload struct {
	Sequence  uint        `json:"sequence"`
	TaskID    string      `json:"task_id"`
	EventType string      `json:"event_type"`
	Message   string      `json:"message"`
	Meta      interface{} `json:"meta"`
	CreatedAt time.Time   `json:"created_at"`
}

// taskEventService 任务事件服务实现
type taskEventService struct {
	eventRepo repository.TaskEventRepository
	notifier  TaskNotifier
}

// NewTaskEventService 创建任务事件服务
// notifier 可以为 nil,此时仅落库不推送
func NewTaskEventService(eventRepo repository.TaskEventRepository, notifier TaskNotifier) TaskEventService {
	return &taskEventService{eventRepo: eventRepo, notifier: notifier}
}

// Record 追加任务事件
func (s *taskEventService) Record(ctx context.Context, taskID, eventType, message string, meta map[string]interface{}) error {
	var metaJSON []byte
	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metaJSON = data
	}
	if message == "" {
		message = eventType
	}

	event := &model.TaskEventModel{
		TaskID:    taskID,
		Level:     eventType,
		Message:   message,
		MetaJSON:  metaJSON,
		CreatedAt: time.Now(),
	}
	if err := s.eventRepo.Append(event); err != nil {
		return err
	}

	if s.notifier != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"task_id":    taskID,
			"event_type": eventType,
			"message":    message,
		})
		if err == nil {
			s.notifier.BroadcastToTask(taskID, payload)
		}
	}
	return nil
}

// RecordQueued 记录入队事件
func (s *taskEventService) RecordQueued(ctx context.Context, taskID, taskType string, params map[string]interface{}) error {
	return s.Record(ctx, taskID, model.TaskStateQueued, fmt.Sprintf("%s queued", taskType),
		map[string]interface{}{"task_type": taskType, "params": params})
}

// RecordRunning 记录开始执行事件
func (s *taskEventService) RecordRunning(ctx context.Context, taskID, taskType string) error {
	return s.Record(ctx, taskID, model.TaskStateRunning, fmt.Sprintf("%s running", taskType),
		map[string]interface{}{"task_type": taskType})
}

// RecordSuccess 记录成功事件
func (s *taskEventService) RecordSuccess(ctx context.Context, taskID, taskType string) error {
	return s.Record(ctx, taskID, model.TaskStateSuccess, fmt.Sprintf("%s success", taskType),
		map[string]interface{}{"task_type": taskType})
}

// RecordFailure 记录失败事件
func (s *taskEventService) RecordFailure(ctx context.Context, taskID, taskType, errorText string) error {
	return s.Record(ctx, taskID, model.TaskStateFailure, fmt.Sprintf("%s failure", taskType),
		map[string]interface{}{"task_type": taskType, "error": errorText})
}

// ListByTask 按序列顺序列出任务事件
func (s *taskEventService) ListByTask(ctx context.Context, taskID string, limit int) ([]*TaskEventPayload, error) {
	rows, err := s.eventRepo.ListByTask(taskID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*TaskEventPayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, &TaskEventPayload{
			Sequence:  row.ID,
			TaskID:    row.TaskID,
			EventType: row.Level,
			Message:   row.Message,
			Meta:      normalizeJSONish(row.MetaJSON),
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

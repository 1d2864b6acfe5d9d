package repository

import (
	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/gorm"
)

// TaskEventRepository 任务事件仓储接口
type TaskEventRepository interface {
	Append(event *model.TaskEventModel) error
	ListByTask(taskID string, limit int) ([]*model.TaskEventModel, error)
	DeleteByTask(tx *gorm.DB, taskID string) error
}

// taskEventRepository 任务事件仓储实现
type taskEventRepository struct {
	db *gorm.DB
}

// NewTaskEventRepository 创建任务事件仓储
func NewTaskEventRepository(db *gorm.DB) TaskEventRepository {
	return &taskEventRepository{db: db}
}

// Append 追加事件
// 只插入,序列号由自增主键分配,写入后不再变更
func (r *taskEventRepository) Append(event *model.TaskEventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.Create(event).Error
}

// ListByTask 按插入顺序列出任务事件
func (r *taskEventRepository) ListByTask(taskID string, limit int) ([]*model.TaskEventModel, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	var events []*model.TaskEventModel
	err := r.db.Where("task_id = ?", taskID).Order("id ASC").Limit(limit).Find(&events).Error
	return events, err
}

// DeleteByTask 删除任务的全部事件,在调用方事务内执行
func (r *taskEventRepository) DeleteByTask(tx *gorm.DB, taskID string) error {
	return tx.Where("task_id = ?", taskID).Delete(&model.TaskEventModel{}).Error
}

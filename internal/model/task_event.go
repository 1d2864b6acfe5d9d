package model

import (
	"errors"
	"time"
)

// TaskEventModel 任务事件数据模型
// 严格只追加,自增主键即为序列号,插入顺序即回放顺序
type TaskEventModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TaskID    string    `gorm:"type:varchar(64);not null;index"`
	Level     string    `gorm:"type:varchar(32);not null;index"` // QUEUED/RUNNING/SUCCESS/FAILURE/WARN/...
	Message   string    `gorm:"type:text;not null"`
	MetaJSON  []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TaskEventModel) TableName() string {
	return "task_events"
}

// Validate 验证事件模型
func (em *TaskEventModel) Validate() error {
	if em.TaskID == "" {
		return errors.New("task ID is required")
	}
	if em.Level == "" {
		return errors.New("event level is required")
	}
	if em.Message == "" {
		return errors.New("event message is required")
	}
	return nil
}

package model

import (
	"errors"
	"time"
)

// 任务状态
const (
	TaskStateQueued  = "QUEUED"
	TaskStateRunning = "RUNNING"
	TaskStateSuccess = "SUCCESS"
	TaskStateFailure = "FAILURE"
	TaskStateDeleted = "DELETED"
)

// 任务类型
const (
	TaskTypeWordAnalysis = "word-analysis"
	TaskTypeSimulation   = "simulation-run"
)

// MaxErrorTextLen 任务错误文本的最大存储长度
const MaxErrorTextLen = 60000

// TaskModel 任务数据模型
type TaskModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	TaskType   string    `gorm:"type:varchar(32);not null;index"` // word-analysis / simulation-run
	Status     string    `gorm:"type:varchar(32);not null;index"` // 任务状态
	ParamsJSON []byte    `gorm:"type:jsonb;not null"`             // 提交参数,创建后不可变
	ResultJSON []byte    `gorm:"type:jsonb"`                      // 成功结果,SUCCESS 时写入一次
	ErrorText  string    `gorm:"type:text"`                       // 失败原因,FAILURE 时写入一次
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.TaskType != TaskTypeWordAnalysis && tm.TaskType != TaskTypeSimulation {
		return errors.New("unknown task type: " + tm.TaskType)
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	if len(tm.ParamsJSON) == 0 {
		return errors.New("task params are required")
	}
	return nil
}

// IsActive 任务是否处于活跃状态(排队或执行中)
func (tm *TaskModel) IsActive() bool {
	return tm.Status == TaskStateQueued || tm.Status == TaskStateRunning
}

package model

import (
	"errors"
	"time"
)

// ArtifactModel 任务产物数据模型
// 记录任务输出文件(如仿真 CSV),随任务删除一并清理
type ArtifactModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TaskID    string    `gorm:"type:varchar(64);not null;index"`
	Kind      string    `gorm:"type:varchar(32);not null"` // csv / preview
	Path      string    `gorm:"type:text;not null"`
	SizeBytes int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ArtifactModel) TableName() string {
	return "task_artifacts"
}

// Validate 验证产物模型
func (am *ArtifactModel) Validate() error {
	if am.TaskID == "" {
		return errors.New("task ID is required")
	}
	if am.Path == "" {
		return errors.New("artifact path is required")
	}
	return nil
}

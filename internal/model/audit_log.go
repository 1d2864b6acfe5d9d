package model

import (
	"errors"
	"time"
)

// 审计动作
const (
	AuditActionError               = "ERROR"
	AuditActionLLMDisabled         = "LLM_DISABLED"
	AuditActionLLMEmpty            = "LLM_EMPTY"
	AuditActionVariantsUpsert      = "LEXICON_VARIANTS_UPSERT"
	AuditActionAdminVariantsUpsert = "ADMIN_LEXICON_VARIANTS_UPSERT"
	AuditActionCacheHit            = "GBNC_CACHE_HIT"
	AuditActionPullSuccess         = "GBNC_PULL_SUCCESS"
	AuditActionTaskDeleted         = "TASK_DELETED"
)

// AuditLogModel 审计日志数据模型
// 全局范围(不归属单个任务),只追加
type AuditLogModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	ActorUserID *string   `gorm:"type:varchar(64);index"` // 可为空,系统动作无执行人
	Action      string    `gorm:"type:varchar(64);not null;index"`
	TargetType  string    `gorm:"type:varchar(64)"`
	TargetID    string    `gorm:"type:varchar(255);index"`
	MetaJSON    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.Action == "" {
		return errors.New("action is required")
	}
	return nil
}

package repository

import (
	"github.com/bkk513/misspelling-platform/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Append(log *model.AuditLogModel) error
	List(limit int) ([]*model.AuditLogModel, error)
	FindByAction(action string, limit int) ([]*model.AuditLogModel, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Append 追加审计日志
func (r *auditLogRepository) Append(log *model.AuditLogModel) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return r.db.Create(log).Error
}

// List 列出最近的审计日志
func (r *auditLogRepository) List(limit int) ([]*model.AuditLogModel, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	var logs []*model.AuditLogModel
	err := r.db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// FindByAction 根据动作查找审计日志
func (r *auditLogRepository) FindByAction(action string, limit int) ([]*model.AuditLogModel, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	var logs []*model.AuditLogModel
	err := r.db.Where("action = ?", action).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

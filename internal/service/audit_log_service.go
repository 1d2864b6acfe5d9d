package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bkk513/misspelling-platform/internal/model"
	"github.com/bkk513/misspelling-platform/internal/repository"
)

// AuditLogService 审计日志服务
// 全局只追加日志,记录管理动作和脱敏后的错误
type AuditLogService interface {
	Record(ctx context.Context, action, targetType, targetID string, meta interface{}, actorUserID *string) error
	RecordError(ctx context.Context, source, message string, meta map[string]interface{}) error
	List(ctx context.Context, action string, limit int) ([]*AuditEntryPayload, error)
}

// AuditEntryPayload 审计日志读取负载
type AuditEntryPayload struct {
	ID          uint        `json:"id"`
	ActorUserID *string     `json:"actor_user_id"`
	Action      string      `json:"action"`
	TargetType  string      `json:"target_type"`
	TargetID    string      `json:"target_id"`
	Meta        interface{} `json:"meta"`
	CreatedAt   time.Time   `json:"created_at"`
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{auditRepo: auditRepo}
}

// Record 追加审计日志
// meta 序列化后无损存储,读取时原样反解
func (s *auditLogService) Record(ctx context.Context, action, targetType, targetID string, meta interface{}, actorUserID *string) error {
	var metaJSON []byte
	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metaJSON = data
	}

	return s.auditRepo.Append(&model.AuditLogModel{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		MetaJSON:    metaJSON,
		CreatedAt:   time.Now(),
	})
}

// RecordError 记录错误审计
// message 必须已脱敏;meta 中的 word 字段用作目标 ID
func (s *auditLogService) RecordError(ctx context.Context, source, message string, meta map[string]interface{}) error {
	payload := map[string]interface{}{
		"level":   "ERROR",
		"message": message,
	}
	targetID := ""
	for k, v := range meta {
		payload[k] = v
	}
	if word, ok := payload["word"].(string); ok {
		targetID = word
	}
	return s.Record(ctx, model.AuditActionError, source, targetID, payload, nil)
}

// List 列出最近的审计日志,action 非空时按动作过滤
func (s *auditLogService) List(ctx context.Context, action string, limit int) ([]*AuditEntryPayload, error) {
	var rows []*model.AuditLogModel
	var err error
	if action != "" {
		rows, err = s.auditRepo.FindByAction(action, limit)
	} else {
		rows, err = s.auditRepo.List(limit)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*AuditEntryPayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, &AuditEntryPayload{
			ID:          row.ID,
			ActorUserID: row.ActorUserID,
			Action:      row.Action,
			TargetType:  row.TargetType,
			TargetID:    row.TargetID,
			Meta:        normalizeJSONish(row.MetaJSON),
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

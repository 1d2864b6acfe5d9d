package service

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrTaskNotFound 任务不存在
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskActive 任务处于活跃状态,拒绝删除
// 对外暴露的拒绝原因固定为 TASK_ACTIVE
var ErrTaskActive = errors.New("TASK_ACTIVE")

// ValidationError 输入校验错误
// 直接返回给调用方,不产生任何状态变更
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError 创建输入校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ExternalFetchError 外部数据源失败
// Message 已脱敏,可安全持久化;是否降级到合成序列由调用方决定
type ExternalFetchError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %s", e.Provider, e.Message)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

// IllegalTransitionError 非法状态转移
// 终态任务不允许被覆盖,幂等的 MarkRunning 重入是唯一例外
type IllegalTransitionError struct {
	TaskID string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for task %s: %s -> %s", e.TaskID, e.From, e.To)
}

var bearerTokenRe = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]+`)

// SanitizeExternalError 脱敏外部调用错误,保证可安全持久化
func SanitizeExternalError(msg string) string {
	msg = bearerTokenRe.ReplaceAllString(msg, "Bearer ***")
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}

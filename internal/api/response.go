package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/bkk513/misspelling-platform/internal/service"
	"gorm.io/gorm"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`    // 状态码: 0 表示成功,非 0 表示失败
	Message string      `json:"message"` // 响应消息
	Data    interface{} `json:"data"`    // 响应数据
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情(可选)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// ServiceError 把服务层错误映射为 HTTP 错误响应
// 校验错误 400,未找到 404,活跃删除与非法状态转移 409,其余 500
func ServiceError(c *gin.Context, err error, operation string) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		Error(c, http.StatusBadRequest, "invalid request", validationErr.Error())
		return
	}
	if errors.Is(err, service.ErrTaskNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		Error(c, http.StatusNotFound, "not found", err.Error())
		return
	}
	if errors.Is(err, service.ErrTaskActive) {
		Error(c, http.StatusConflict, "TASK_ACTIVE", "task is queued or running and cannot be deleted")
		return
	}
	var transitionErr *service.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		Error(c, http.StatusConflict, "illegal transition", transitionErr.Error())
		return
	}
	var fetchErr *service.ExternalFetchError
	if errors.As(err, &fetchErr) {
		Error(c, http.StatusBadGateway, "external source unavailable", fetchErr.Message)
		return
	}
	Error(c, http.StatusInternalServerError, "failed to "+operation, err.Error())
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RecoveryAshes/XHSCollector/internal/collector"
	"github.com/RecoveryAshes/XHSCollector/internal/export"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, Response{Success: false, Error: err.Error()})
}

// statusCode 把命令错误映射为HTTP状态码
func statusCode(err error) int {
	switch {
	case errors.Is(err, collector.ErrAlreadyRunning),
		errors.Is(err, collector.ErrNotRunning),
		errors.Is(err, collector.ErrNotPaused),
		errors.Is(err, collector.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, collector.ErrInvalidSettings),
		errors.Is(err, export.ErrNoRecords):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

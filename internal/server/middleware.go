package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RecoveryAshes/XHSCollector/internal/utils"
)

// accessLog 用zerolog记录访问日志
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := utils.Logger.Debug()
		if status >= http.StatusInternalServerError {
			event = utils.Logger.Error()
		} else if status >= http.StatusBadRequest {
			event = utils.Logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("HTTP请求")
	}
}

// auth API密钥鉴权,支持 X-API-Key 和 Authorization: Bearer
// 没有配置密钥时放行
func auth(apiKeys []string) gin.HandlerFunc {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			if bearer, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); found {
				key = strings.TrimSpace(bearer)
			}
		}
		if _, valid := keys[key]; !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: "缺少或无效的API密钥"})
			return
		}
		c.Next()
	}
}

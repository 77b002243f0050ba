package handler

import (
	"strconv"

	"github.com/MorningJack/prompt-ai/internal/domain/user"
	"github.com/MorningJack/prompt-ai/internal/middleware"

	"github.com/gin-gonic/gin"
)

// extractUserID 从上下文读取认证中间件写入的用户 ID。
func extractUserID(c *gin.Context) (uint, bool) {
	val, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	switch id := val.(type) {
	case uint:
		return id, true
	case uint64:
		return uint(id), true
	case int:
		if id < 0 {
			return 0, false
		}
		return uint(id), true
	default:
		return 0, false
	}
}

// extractIdentity 读取调用者完整身份（含提权标志），未认证时返回 nil。
func extractIdentity(c *gin.Context) *user.Identity {
	return middleware.CallerIdentity(c)
}

// parseIDParam 解析路径中的正整数 ID 参数。
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// parseUintQuery 解析可选的无符号整型查询参数，缺省返回 nil。
func parseUintQuery(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	id := uint(id64)
	return &id, true
}

// parseBoolQuery 解析可选的布尔查询参数，缺省返回 nil。
func parseBoolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// parseIntQuery 解析整型查询参数，缺省或非法时返回给定默认值。
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

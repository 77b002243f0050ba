package middleware

import (
	"net/http"
	"strings"

	"github.com/MorningJack/prompt-ai/internal/domain/user"
	response "github.com/MorningJack/prompt-ai/internal/infra/common"
	"github.com/MorningJack/prompt-ai/internal/infra/token"

	"github.com/gin-gonic/gin"
)

// gin.Context 中缓存调用者身份的键。
const (
	ContextUserIDKey    = "userID"
	ContextIsPremiumKey = "isPremium"
)

// AccessTokenParser 抽象访问令牌的校验与解析。
type AccessTokenParser interface {
	ParseAccessToken(raw string) (token.AccessTokenClaims, error)
}

// bearerToken 从 Authorization 头中取出 Bearer 令牌，缺失或格式不对时返回空串。
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth 强制认证：缺失或无效的访问令牌直接以 401 终止请求。
// 校验通过后把 userID / isPremium 写入上下文供处理器读取。
func RequireAuth(parser AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}

		claims, err := parser.ParseAccessToken(raw)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "invalid or expired access token", nil)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextIsPremiumKey, claims.IsPremium)
		c.Next()
	}
}

// OptionalAuth 可选认证：令牌有效则注入身份，无效或缺失时以匿名身份放行。
func OptionalAuth(parser AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw != "" {
			if claims, err := parser.ParseAccessToken(raw); err == nil {
				c.Set(ContextUserIDKey, claims.UserID)
				c.Set(ContextIsPremiumKey, claims.IsPremium)
			}
		}
		c.Next()
	}
}

// CallerIdentity 读取上下文中的调用者身份，未认证时返回 nil。
func CallerIdentity(c *gin.Context) *user.Identity {
	rawID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return nil
	}
	id, ok := rawID.(uint)
	if !ok {
		return nil
	}
	return &user.Identity{
		ID:      id,
		Premium: c.GetBool(ContextIsPremiumKey),
	}
}

package middleware

import (
	"net/http"

	"campus-tutor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 创建一个 Gin 中间件，要求调用者持有管理员角色。
// 必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
			return
		}
		if claims.Role != token.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}

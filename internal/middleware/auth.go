// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"campus-tutor-go/internal/repository"
	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 创建一个 Gin 中间件，用于会话令牌认证。
// 它会从请求头中提取 token，验证其有效性，并确认该身份仍在白名单中，
// 然后将声明存入 Gin 的上下文。白名单确认是 fail-closed 的。
func AuthMiddleware(authService service.AuthService, credentialRepo repository.CredentialRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := authService.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 令牌是无状态的，签发后身份可能已被移出白名单
		ok, err := credentialRepo.IsWhitelisted(c.Request.Context(), claims.Identity)
		if err != nil || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// claimsFromContext 取出 AuthMiddleware 存入上下文的声明。
func claimsFromContext(c *gin.Context) (*token.CustomClaims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.CustomClaims)
	return claims, ok
}

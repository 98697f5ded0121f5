package handler

import (
	"campus-tutor-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// claimsFrom 取出认证中间件存入上下文的声明。
func claimsFrom(c *gin.Context) (*token.CustomClaims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.CustomClaims)
	return claims, ok
}

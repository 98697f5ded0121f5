// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理验证码登录相关的 API 请求。
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RequestCodeRequest 定义了请求验证码 API 的请求体结构。
type RequestCodeRequest struct {
	Identity string `json:"identity" binding:"required,email"`
}

// RequestCode 处理发送一次性验证码的请求。
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("RequestCode: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：identity 必须是邮箱地址", "data": nil})
		return
	}

	err := h.authService.RequestVerification(c.Request.Context(), req.Identity)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthorized) {
			c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "该邮箱未被授权使用本服务", "data": nil})
			return
		}
		log.Errorf("RequestCode: Failed to deliver code to %s: %v", req.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "验证码发送失败，请稍后重试", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "验证码已发送，请查收邮件", "data": nil})
}

// VerifyCodeRequest 定义了校验验证码 API 的请求体结构。
type VerifyCodeRequest struct {
	Identity string `json:"identity" binding:"required,email"`
	Code     string `json:"code" binding:"required"`
}

// VerifyCode 处理校验验证码并签发会话令牌的请求。
// 所有校验失败统一返回同一条 401 消息，不泄露失败的具体原因。
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("VerifyCode: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	tokenString, claims, err := h.authService.VerifyCode(c.Request.Context(), req.Identity, req.Code)
	if err != nil {
		log.Warnf("VerifyCode: Verification failed for %s: %v", req.Identity, err)
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "验证码无效或已过期", "data": nil})
		return
	}

	log.Infof("Identity '%s' logged in with role '%s'", claims.Identity, claims.Role)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"token":    tokenString,
			"identity": claims.Identity,
			"role":     claims.Role,
		},
	})
}

package handler

import (
	"net/http"

	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QuotaHandler 负责处理配额查询的 API 请求。
type QuotaHandler struct {
	quotaService service.QuotaService
}

// NewQuotaHandler 创建一个新的 QuotaHandler 实例。
func NewQuotaHandler(quotaService service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// GetQuota 返回当前身份今天的配额使用情况。
func (h *QuotaHandler) GetQuota(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证", "data": nil})
		return
	}

	status, err := h.quotaService.CheckLimit(c.Request.Context(), claims.Identity)
	if err != nil {
		log.Errorf("GetQuota: Failed for %s: %v", claims.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取配额信息失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": status})
}

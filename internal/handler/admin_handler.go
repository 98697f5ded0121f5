package handler

import (
	"net/http"
	"strconv"

	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
	quotaService service.QuotaService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService, quotaService service.QuotaService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		quotaService: quotaService,
	}
}

// IdentityRequest 定义了以邮箱身份为参数的 API 的请求体结构。
type IdentityRequest struct {
	Identity string `json:"identity" binding:"required,email"`
}

// AddToWhitelist 处理向白名单添加身份的请求。
func (h *AdminHandler) AddToWhitelist(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	if err := h.adminService.AddToWhitelist(c.Request.Context(), req.Identity); err != nil {
		log.Errorf("AddToWhitelist: Failed for %s: %v", req.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "添加白名单失败", "data": nil})
		return
	}

	claims, _ := claimsFrom(c)
	log.Infof("Admin '%s' added '%s' to whitelist", claims.Identity, req.Identity)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// RemoveFromWhitelist 处理从白名单移除身份的请求。
// 移除白名单会级联移除管理员资格。
func (h *AdminHandler) RemoveFromWhitelist(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	if err := h.adminService.RemoveFromWhitelist(c.Request.Context(), req.Identity); err != nil {
		log.Errorf("RemoveFromWhitelist: Failed for %s: %v", req.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "移除白名单失败", "data": nil})
		return
	}

	claims, _ := claimsFrom(c)
	log.Infof("Admin '%s' removed '%s' from whitelist", claims.Identity, req.Identity)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// ListWhitelist 处理获取白名单列表的请求。
func (h *AdminHandler) ListWhitelist(c *gin.Context) {
	identities, err := h.adminService.Whitelist(c.Request.Context())
	if err != nil {
		log.Error("ListWhitelist: Failed to list whitelist", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取白名单失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": identities})
}

// GrantAdmin 处理授予管理员资格的请求，身份会同时加入白名单。
func (h *AdminHandler) GrantAdmin(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	if err := h.adminService.GrantAdmin(c.Request.Context(), req.Identity); err != nil {
		log.Errorf("GrantAdmin: Failed for %s: %v", req.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "授予管理员失败", "data": nil})
		return
	}

	claims, _ := claimsFrom(c)
	log.Infof("Admin '%s' granted admin to '%s'", claims.Identity, req.Identity)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// RevokeAdmin 处理撤销管理员资格的请求，白名单资格保留。
func (h *AdminHandler) RevokeAdmin(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	if err := h.adminService.RevokeAdmin(c.Request.Context(), req.Identity); err != nil {
		log.Errorf("RevokeAdmin: Failed for %s: %v", req.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "撤销管理员失败", "data": nil})
		return
	}

	claims, _ := claimsFrom(c)
	log.Infof("Admin '%s' revoked admin from '%s'", claims.Identity, req.Identity)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// ListAdmins 处理获取管理员列表的请求。
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	identities, err := h.adminService.Admins(c.Request.Context())
	if err != nil {
		log.Error("ListAdmins: Failed to list admins", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取管理员列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": identities})
}

// GetQuotaUsage 处理查询某身份今日配额使用量的请求。
func (h *AdminHandler) GetQuotaUsage(c *gin.Context) {
	identity := c.Query("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "identity 不能为空", "data": nil})
		return
	}

	used, err := h.quotaService.Usage(c.Request.Context(), identity)
	if err != nil {
		log.Errorf("GetQuotaUsage: Failed for %s: %v", identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取配额用量失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"identity": identity, "used": used}})
}

// ListInteractions 处理分页获取问答记录的请求，identity 为空时返回全部。
func (h *AdminHandler) ListInteractions(c *gin.Context) {
	identity := c.Query("identity")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	records, total, err := h.adminService.ListInteractions(identity, (page-1)*size, size)
	if err != nil {
		log.Error("ListInteractions: Failed to list records", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取问答记录失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"records": records,
			"total":   total,
			"page":    page,
			"size":    size,
		},
	})
}

// ReindexRequest 定义了触发重建索引 API 的请求体结构。
type ReindexRequest struct {
	SourceDir string `json:"sourceDir" binding:"required"`
	Recursive bool   `json:"recursive"`
}

// TriggerReindex 处理触发异步重建索引的请求，任务经由消息队列投递。
func (h *AdminHandler) TriggerReindex(c *gin.Context) {
	var req ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：sourceDir 不能为空", "data": nil})
		return
	}

	claims, _ := claimsFrom(c)
	if err := h.adminService.TriggerReindex(req.SourceDir, req.Recursive, claims.Identity); err != nil {
		log.Errorf("TriggerReindex: Failed to produce task for %s: %v", req.SourceDir, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "投递重建索引任务失败", "data": nil})
		return
	}

	log.Infof("Admin '%s' triggered reindex of '%s' (recursive=%v)", claims.Identity, req.SourceDir, req.Recursive)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "重建索引任务已提交", "data": nil})
}

// GetSourceURL 为一份已归档的课程资料原件签发限时下载链接。
// object 参数是归档时使用的相对路径。
func (h *AdminHandler) GetSourceURL(c *gin.Context) {
	objectName := c.Query("object")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "object 参数不能为空", "data": nil})
		return
	}

	url, err := h.adminService.SourceURL(c.Request.Context(), objectName)
	if err != nil {
		log.Errorf("GetSourceURL: Failed for object %s: %v", objectName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成原件下载链接失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": url}})
}

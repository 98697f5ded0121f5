package handler

import (
	"errors"
	"net/http"

	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// FeedbackHandler 负责处理回答质量反馈的 API 请求。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler 实例。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// SubmitFeedbackRequest 定义了提交反馈 API 的请求体结构。
type SubmitFeedbackRequest struct {
	Category    string `json:"category" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// Submit 处理用户提交反馈的请求，反馈会附带最近的对话摘录。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证", "data": nil})
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Submit feedback: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	report, err := h.feedbackService.Submit(c.Request.Context(), claims.Identity, req.Category, req.Description)
	if err != nil {
		log.Errorf("Submit feedback: Failed for %s: %v", claims.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "提交反馈失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "感谢反馈", "data": gin.H{"id": report.ID, "status": report.Status}})
}

// List 处理管理员获取全部反馈列表的请求。
func (h *FeedbackHandler) List(c *gin.Context) {
	reports, err := h.feedbackService.List(c.Request.Context())
	if err != nil {
		log.Error("List feedback: Failed to list reports", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取反馈列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": reports})
}

// UpdateStatusRequest 定义了更新反馈状态 API 的请求体结构。
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 处理管理员更新反馈处理状态的请求。
func (h *FeedbackHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	report, err := h.feedbackService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的目标状态", "data": nil})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": "该反馈已被处理，不能再变更状态", "data": nil})
		default:
			log.Errorf("UpdateStatus: Failed for report %s: %v", id, err)
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "反馈不存在", "data": nil})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// Stats 处理管理员获取反馈状态统计的请求。
func (h *FeedbackHandler) Stats(c *gin.Context) {
	stats, err := h.feedbackService.Stats(c.Request.Context())
	if err != nil {
		log.Error("Stats: Failed to count feedback", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取反馈统计失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 问答连接。
type ChatHandler struct {
	chatService  service.ChatService
	authService  service.AuthService
	quotaService service.QuotaService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, authService service.AuthService, quotaService service.QuotaService) *ChatHandler {
	return &ChatHandler{
		chatService:  chatService,
		authService:  authService,
		quotaService: quotaService,
	}
}

// chatResponse 是回写给客户端的单轮应答。
type chatResponse struct {
	Type          string `json:"type"`
	Response      string `json:"response"`
	ContextUsed   bool   `json:"contextUsed"`
	ContextChunks int    `json:"contextChunks"`
	Timestamp     int64  `json:"timestamp"`
}

// Handle 处理一个传入的 WebSocket 连接。
// 客户端逐条发送问题文本；每条问题先做配额检查，回答成功后记账。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.authService.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，身份: %s", claims.Identity)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		prompt := string(message)
		if prompt == "" {
			continue
		}

		status, err := h.quotaService.CheckLimit(c.Request.Context(), claims.Identity)
		if err == nil && !status.Allowed {
			h.writeJSON(conn, map[string]interface{}{
				"type":      "quota_exceeded",
				"message":   "今日提问次数已用完，请明天再来",
				"used":      status.Used,
				"limit":     status.Limit,
				"timestamp": time.Now().UnixMilli(),
			})
			h.writeCompletion(conn)
			continue
		}

		result, err := h.chatService.SendMessage(c.Request.Context(), claims.Identity, prompt)
		if err != nil {
			log.Errorf("处理问答失败, identity: %s, err: %v", claims.Identity, err)
			h.writeJSON(conn, map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
			h.writeCompletion(conn)
			continue
		}

		// 记账放在成功响应之后，失败的请求不消耗配额
		h.quotaService.RecordQuery(c.Request.Context(), claims.Identity)

		h.writeJSON(conn, chatResponse{
			Type:          "answer",
			Response:      result.Response,
			ContextUsed:   result.ContextUsed,
			ContextChunks: result.ContextChunks,
			Timestamp:     time.Now().UnixMilli(),
		})
		h.writeCompletion(conn)
	}
}

// ClearHistory 处理清空当前身份对话历史的请求。
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证", "data": nil})
		return
	}

	if err := h.chatService.ClearHistory(c.Request.Context(), claims.Identity); err != nil {
		log.Errorf("ClearHistory: Failed for %s: %v", claims.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "清空对话历史失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "对话历史已清空", "data": nil})
}

// GetHistory 处理获取当前身份对话历史的请求。
func (h *ChatHandler) GetHistory(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证", "data": nil})
		return
	}

	history, err := h.chatService.History(c.Request.Context(), claims.Identity)
	if err != nil {
		log.Errorf("GetHistory: Failed for %s: %v", claims.Identity, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取对话历史失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": history})
}

func (h *ChatHandler) writeJSON(conn *websocket.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("序列化 WebSocket 消息失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}

func (h *ChatHandler) writeCompletion(conn *websocket.Conn) {
	h.writeJSON(conn, map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	})
}

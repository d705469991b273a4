package handler

import (
	"net/http"

	"mindbridge-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 暴露 AI 会话与辅导员会话的本地操作入口。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// List 返回会话列表（先从后端刷新一次）。
func (h *SessionHandler) List(c *gin.Context) {
	if err := h.sessionService.LoadSessions(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.sessionService.Sessions()})
}

// Open 打开一个会话并整体加载历史。
func (h *SessionHandler) Open(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessionService.Open(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.sessionService.Current()})
}

// Current 返回当前会话与输入指示状态。
func (h *SessionHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"session": h.sessionService.Current(),
			"typing":  h.sessionService.Typing(),
		},
	})
}

type sendRequest struct {
	Text string `json:"text" binding:"required"`
	Mood string `json:"mood"`
}

// Send 发送一条消息。
func (h *SessionHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "消息内容不能为空", "data": nil})
		return
	}

	msg, err := h.sessionService.Send(c.Request.Context(), req.Text, req.Mood)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// Delete 删除一个会话。
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessionService.Delete(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// Conversations 返回辅导员会话列表（先从后端刷新一次）。
func (h *SessionHandler) Conversations(c *gin.Context) {
	if err := h.sessionService.LoadConversations(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.sessionService.Conversations()})
}

type directSendRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Priority    string `json:"priority"`
}

// SendDirect 向学生发送一条私信。
func (h *SessionHandler) SendDirect(c *gin.Context) {
	conversationID := c.Param("id")

	var req directSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "私信内容不完整", "data": nil})
		return
	}

	if err := h.sessionService.SendDirect(c.Request.Context(), conversationID, req.RecipientID, req.Content, req.Priority); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

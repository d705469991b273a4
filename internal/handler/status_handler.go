// Package handler 包含了本地接口的控制器逻辑，桌面 UI 通过它读取管线状态。
package handler

import (
	"net/http"
	"time"

	"mindbridge-go/internal/service"
	"mindbridge-go/pkg/realtime"

	"github.com/gin-gonic/gin"
)

// StatusHandler 暴露连接状态与仪表盘快照。
type StatusHandler struct {
	client  *realtime.Client
	joiner  *realtime.Joiner
	refresh service.RefreshService
}

// NewStatusHandler 创建一个新的 StatusHandler。
func NewStatusHandler(client *realtime.Client, joiner *realtime.Joiner, refresh service.RefreshService) *StatusHandler {
	return &StatusHandler{client: client, joiner: joiner, refresh: refresh}
}

// Status 返回管线状态。connected=false 时 UI 显示“离线”，
// 数据仍由 30 秒兜底轮询维持。
func (h *StatusHandler) Status(c *gin.Context) {
	lastUpdate := h.refresh.LastUpdate()
	var lastUpdateStr string
	if !lastUpdate.IsZero() {
		lastUpdateStr = lastUpdate.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"state":      h.client.State().String(),
			"connected":  h.client.IsConnected(),
			"joins":      h.joiner.JoinCount(),
			"lastUpdate": lastUpdateStr,
		},
	})
}

// Dashboard 返回当前仪表盘快照。
func (h *StatusHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.refresh.Snapshot(),
	})
}

// Refresh 手动触发一次刷新。
func (h *StatusHandler) Refresh(c *gin.Context) {
	h.refresh.Trigger("manual")
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "refresh triggered", "data": nil})
}

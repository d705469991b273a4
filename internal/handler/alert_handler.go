package handler

import (
	"net/http"

	"mindbridge-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AlertHandler 暴露近期危机预警缓冲与状态迁移入口。
type AlertHandler struct {
	alertService service.AlertService
}

// NewAlertHandler 创建一个新的 AlertHandler。
func NewAlertHandler(alertService service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// Recent 返回有界缓冲中的预警，最新在前。
// 完整列表由 UI 直接走后端 REST，这里只是实时信息流。
func (h *AlertHandler) Recent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.alertService.Recent(),
	})
}

type respondRequest struct {
	Note string `json:"note"`
}

// Respond 将一条预警标记为已响应。
func (h *AlertHandler) Respond(c *gin.Context) {
	alertID := c.Param("id")

	var req respondRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.alertService.Respond(c.Request.Context(), alertID, req.Note); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// Resolve 将一条预警标记为已解决。只有后端确认后缓冲条目才会移除，
// 请求失败时预警保持在列表里，不会乐观消失。
func (h *AlertHandler) Resolve(c *gin.Context) {
	alertID := c.Param("id")

	if err := h.alertService.Resolve(c.Request.Context(), alertID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": err.Error(), "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

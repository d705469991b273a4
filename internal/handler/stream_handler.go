package handler

import (
	"encoding/json"
	"net/http"

	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/notify"
	"mindbridge-go/pkg/realtime"
	"mindbridge-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 本地回环接口，允许所有来源
	},
}

// StreamHandler 把 toast 与连接状态变化以 WebSocket 推给桌面 UI。
type StreamHandler struct {
	toasts     *notify.ToastBus
	client     *realtime.Client
	jwtManager *token.JWTManager
}

// NewStreamHandler 创建一个新的 StreamHandler。
func NewStreamHandler(toasts *notify.ToastBus, client *realtime.Client, jwtManager *token.JWTManager) *StreamHandler {
	return &StreamHandler{toasts: toasts, client: client, jwtManager: jwtManager}
}

// streamFrame 是推给本地 UI 的帧。
type streamFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Handle 处理一个传入的本地流连接。
// 浏览器端 WebSocket 无法携带请求头，token 放在路径参数里。
func (h *StreamHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	if _, err := h.jwtManager.VerifyToken(tokenString); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	toastCh, cancel := h.toasts.Subscribe()
	defer cancel()

	// 读 goroutine 只用于感知对端关闭
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 先推一帧当前连接状态，UI 不用等下一次变化
	h.writeFrame(conn, "connection_state", gin.H{
		"state":     h.client.State().String(),
		"connected": h.client.IsConnected(),
	})

	for {
		select {
		case <-done:
			return
		case toast, ok := <-toastCh:
			if !ok {
				return
			}
			if !h.writeFrame(conn, "toast", toast) {
				return
			}
		}
	}
}

func (h *StreamHandler) writeFrame(conn *websocket.Conn, event string, data interface{}) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Warnf("无法序列化推送帧: %v", err)
		return true
	}
	frame, _ := json.Marshal(streamFrame{Event: event, Data: json.RawMessage(payload)})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Warnf("本地流写入失败: %v", err)
		return false
	}
	return true
}

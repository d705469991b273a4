// Package realtime 实现了与 MindBridge 后端 WebSocket 服务的长连接管线：
// 连接管理、断线重连、房间加入协议以及事件分发。
package realtime

import "encoding/json"

// 服务端推送的事件。crisis_alert 是规范名，crisis-alert 是历史别名，
// 两者路由到同一个处理器，谁都不会被丢弃。
const (
	EventAIResponse        = "ai-response"
	EventCrisisAlert       = "crisis_alert"
	EventCrisisAlertLegacy = "crisis-alert"
	EventNewMessage        = "new_message"
	EventStudentActivity   = "student_activity"
	EventAppointmentUpdate = "appointment_update"
	EventNewAlert          = "new_alert"
	EventAnalyticsUpdate   = "analytics_update"
	EventRoomJoined        = "room_joined"
)

// 客户端发出的事件。
const (
	EventJoinUserRoom      = "join-user-room"
	EventJoinCounselorRoom = "join-counselor-room"
	EventUserMessage       = "user-message"
	EventSendMessage       = "send-message"
)

// Envelope 是 WebSocket 上传输的统一帧格式。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler 处理一个到达的事件载荷。处理器在读循环的 goroutine 上运行，
// 不能阻塞；耗时操作需要自行派发。
type Handler func(data json.RawMessage)

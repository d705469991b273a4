package model

import "time"

// 消息发送方
const (
	SenderUser   = "user"
	SenderAI     = "ai"
	SenderSystem = "system"
)

// ChatMessage 代表会话中的一条消息。创建后不再修改，
// 会话内的顺序即插入顺序。
type ChatMessage struct {
	ID            string    `json:"id"`
	Sender        string    `json:"sender"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"sessionId"`
	TherapistName string    `json:"therapistName,omitempty"`
	IsAlert       bool      `json:"isAlert,omitempty"`
	AlertType     string    `json:"alertType,omitempty"`
}

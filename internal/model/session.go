package model

import "time"

// Session 代表一次 AI 疗愈会话。首条消息发出前处于暂态（ID 为空），
// 后端持久化后签发正式 ID。
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Conversation 代表辅导员与学生之间的一个会话。
type Conversation struct {
	ID           string        `json:"id"`
	Participants []string      `json:"participants"`
	Messages     []ChatMessage `json:"messages"`
	CreatedAt    time.Time     `json:"createdAt"`
}

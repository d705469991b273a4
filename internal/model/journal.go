package model

import "time"

// 审计日志记录的动作类型
const (
	JournalActionReceived     = "received"
	JournalActionAcknowledged = "acknowledged"
	JournalActionResolved     = "resolved"
)

// AlertRecord 定义了 alert_journal 表的 ORM 模型。
// 每条危机预警的接收与状态迁移都会在这里留痕，用于事后审计。
type AlertRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlertID     string    `gorm:"type:varchar(64);index;not null" json:"alertId"`
	StudentID   string    `gorm:"type:varchar(64)" json:"studentId"`
	College     string    `gorm:"type:varchar(128)" json:"college"`
	Message     string    `gorm:"type:text" json:"message"`
	Urgency     int       `gorm:"type:tinyint" json:"urgency"`
	Action      string    `gorm:"type:varchar(16);not null" json:"action"`
	ActorID     string    `gorm:"type:varchar(64)" json:"actorId"`
	AlertTime   time.Time `json:"alertTime"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AlertRecord) TableName() string {
	return "alert_journal"
}

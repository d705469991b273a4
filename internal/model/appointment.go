package model

import "time"

// Appointment 代表一条预约记录，仅用于仪表盘展示，由后端全权管理。
type Appointment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	CounselorID string    `json:"counselorId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
}

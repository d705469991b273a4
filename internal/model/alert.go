// Package model 包含了应用的数据模型定义。
package model

import "time"

// 危机预警的状态机：active → acknowledged → resolved，
// 或 active → resolved。状态迁移只能由后端确认的 REST 调用触发。
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// StudentInfo 是预警载荷中携带的学生摘要信息。
type StudentInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	College string `json:"college"`
}

// CrisisAlert 代表一条危机预警，由服务端推送或 REST 拉取得到。
type CrisisAlert struct {
	ID              string      `json:"id"`
	Student         StudentInfo `json:"studentInfo"`
	CollegeInfo     string      `json:"collegeInfo"`
	Message         string      `json:"message"`
	DetectionMethod string      `json:"detectionMethod"`
	Urgency         int         `json:"urgency"` // 1（最低）到 5（最高）
	Timestamp       time.Time   `json:"timestamp"`
	Status          string      `json:"status"`
}

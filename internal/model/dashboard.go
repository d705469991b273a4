package model

import "time"

// DashboardSnapshot 是后端聚合接口返回的仪表盘数据。
// 每次刷新整体替换，从不逐字段修补。
type DashboardSnapshot struct {
	RiskDistribution map[string]int `json:"riskDistribution"`
	WeeklyTrends     []TrendPoint   `json:"weeklyTrends"`
	TotalStudents    int            `json:"totalStudents"`
	ActiveSessions   int            `json:"activeSessions"`
	ActiveAlerts     int            `json:"activeAlerts"`
	Appointments     int            `json:"appointments"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

// TrendPoint 是趋势图上的一个采样点。
type TrendPoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// EmptySnapshot 返回一个零值快照。
// 聚合接口字段缺失或首个请求失败时用它兜底，避免上层拿到 nil。
func EmptySnapshot() *DashboardSnapshot {
	return &DashboardSnapshot{
		RiskDistribution: map[string]int{},
		WeeklyTrends:     []TrendPoint{},
	}
}

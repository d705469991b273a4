// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"time"

	"mindbridge-go/internal/model"

	"gorm.io/gorm"
)

// AlertJournalRepository 定义了危机预警审计日志的操作接口。
type AlertJournalRepository interface {
	// Record 追加一条审计记录。
	Record(ctx context.Context, alert model.CrisisAlert, action, actorID string) error
	// ListByAlert 按预警 ID 查询全部审计记录，按时间升序。
	ListByAlert(ctx context.Context, alertID string) ([]model.AlertRecord, error)
	// ListRecent 查询最近的 limit 条审计记录，按时间降序。
	ListRecent(ctx context.Context, limit int) ([]model.AlertRecord, error)
}

type gormAlertJournalRepository struct {
	db *gorm.DB
}

// NewAlertJournalRepository 创建一个新的 AlertJournalRepository 实例。
func NewAlertJournalRepository(db *gorm.DB) AlertJournalRepository {
	return &gormAlertJournalRepository{db: db}
}

// Record 追加一条审计记录。
func (r *gormAlertJournalRepository) Record(ctx context.Context, alert model.CrisisAlert, action, actorID string) error {
	record := model.AlertRecord{
		AlertID:   alert.ID,
		StudentID: alert.Student.ID,
		College:   alert.Student.College,
		Message:   alert.Message,
		Urgency:   alert.Urgency,
		Action:    action,
		ActorID:   actorID,
		AlertTime: alert.Timestamp,
	}
	if record.AlertTime.IsZero() {
		record.AlertTime = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record alert journal entry: %w", err)
	}
	return nil
}

// ListByAlert 按预警 ID 查询全部审计记录。
func (r *gormAlertJournalRepository) ListByAlert(ctx context.Context, alertID string) ([]model.AlertRecord, error) {
	var records []model.AlertRecord
	err := r.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return records, nil
}

// ListRecent 查询最近的审计记录。
func (r *gormAlertJournalRepository) ListRecent(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	var records []model.AlertRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent journal entries: %w", err)
	}
	return records, nil
}

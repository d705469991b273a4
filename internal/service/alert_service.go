package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/internal/repository"
	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/notify"

	"github.com/google/uuid"
)

// AlertBackend 是危机预警状态迁移所需的后端能力。
// 迁移只能由这些 REST 调用触发，客户端从不自行推断状态。
type AlertBackend interface {
	RespondCrisisAlert(ctx context.Context, alertID, note string) error
	ResolveCrisisAlert(ctx context.Context, alertID string) error
}

// AlertService 定义了危机预警处理的接口。
type AlertService interface {
	// HandleAlertEvent 处理 crisis_alert（及其兼容别名）事件。
	HandleAlertEvent(data json.RawMessage)
	// Recent 返回有界缓冲中的预警，最新在前。
	Recent() []model.CrisisAlert
	// Respond 将预警标记为已响应（active → acknowledged）。
	Respond(ctx context.Context, alertID, note string) error
	// Resolve 将预警标记为已解决。后端确认成功后才从缓冲移除。
	Resolve(ctx context.Context, alertID string) error
}

type alertService struct {
	ctx       context.Context
	bufferCap int
	soundOn   bool

	backend  AlertBackend
	notifier notify.Notifier
	player   notify.SoundPlayer
	toasts   *notify.ToastBus
	journal  repository.AlertJournalRepository // 可为 nil（审计未启用）
	dedup    *Deduplicator
	refresh  func(reason string)
	actorID  string

	mu     sync.Mutex
	buffer []model.CrisisAlert
}

// NewAlertService 创建危机预警处理服务。
// ctx 是中继的运行上下文，异步副作用（审计、刷新提示）随它取消。
func NewAlertService(
	ctx context.Context,
	bufferCap int,
	soundOn bool,
	backend AlertBackend,
	notifier notify.Notifier,
	player notify.SoundPlayer,
	toasts *notify.ToastBus,
	journal repository.AlertJournalRepository,
	dedup *Deduplicator,
	refresh func(reason string),
	actorID string,
) AlertService {
	if bufferCap <= 0 {
		bufferCap = 10
	}
	return &alertService{
		ctx:       ctx,
		bufferCap: bufferCap,
		soundOn:   soundOn,
		backend:   backend,
		notifier:  notifier,
		player:    player,
		toasts:    toasts,
		journal:   journal,
		dedup:     dedup,
		refresh:   refresh,
		actorID:   actorID,
	}
}

// alertPayload 兼容两种推送载荷：student 与 studentInfo 字段都可能出现。
type alertPayload struct {
	ID              string             `json:"id"`
	Student         *model.StudentInfo `json:"student"`
	StudentInfo     *model.StudentInfo `json:"studentInfo"`
	CollegeInfo     string             `json:"collegeInfo"`
	Message         string             `json:"message"`
	DetectionMethod string             `json:"detectionMethod"`
	Urgency         int                `json:"urgency"`
	Timestamp       time.Time          `json:"timestamp"`
}

// HandleAlertEvent 处理一条危机预警推送。
// 推送只是刷新提示，权威状态始终以 REST 拉取为准。
func (s *alertService) HandleAlertEvent(data json.RawMessage) {
	var payload alertPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("无法解析危机预警载荷: %v", err)
		return
	}

	alert := model.CrisisAlert{
		ID:              payload.ID,
		CollegeInfo:     payload.CollegeInfo,
		Message:         payload.Message,
		DetectionMethod: payload.DetectionMethod,
		Urgency:         payload.Urgency,
		Timestamp:       payload.Timestamp,
		Status:          model.AlertStatusActive,
	}
	if payload.StudentInfo != nil {
		alert.Student = *payload.StudentInfo
	} else if payload.Student != nil {
		alert.Student = *payload.Student
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	if !s.admit(&alert) {
		log.Debugf("重复的危机预警已抑制: %s", alert.ID)
		return
	}

	log.Infow("收到危机预警",
		"alertId", alert.ID,
		"studentId", alert.Student.ID,
		"urgency", alert.Urgency,
		"detection", alert.DetectionMethod,
	)

	s.notifyDesktop(alert)
	s.playSound()
	s.publishToast(alert)

	// 审计与权威刷新都不能阻塞读循环
	if s.journal != nil {
		go func() {
			if err := s.journal.Record(s.ctx, alert, model.JournalActionReceived, ""); err != nil {
				log.Warnf("审计记录写入失败: %v", err)
			}
		}()
	}
	if s.refresh != nil {
		s.refresh("crisis_alert")
	}
}

// admit 把预警放入有界缓冲。同一条预警经规范名与别名双路到达时，
// 按 ID 折叠；载荷没有 ID 时退化为指纹窗口判重。
func (s *alertService) admit(alert *model.CrisisAlert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert.ID != "" {
		for _, existing := range s.buffer {
			if existing.ID == alert.ID {
				return false
			}
		}
	} else {
		if s.dedup != nil && !s.dedup.ShouldAppend("crisis", alert.Student.ID+"\x00"+alert.Message) {
			return false
		}
		alert.ID = uuid.NewString()
	}

	// 最新在前，超出容量时丢掉最旧的
	s.buffer = append([]model.CrisisAlert{*alert}, s.buffer...)
	if len(s.buffer) > s.bufferCap {
		s.buffer = s.buffer[:s.bufferCap]
	}
	return true
}

// notifyDesktop 按权限生命周期弹系统通知：
// granted 直接弹；default 先请求、授权后才弹；denied 连构造都不发生。
func (s *alertService) notifyDesktop(alert model.CrisisAlert) {
	if s.notifier == nil {
		return
	}
	perm := s.notifier.Permission()
	if perm == notify.PermissionDefault {
		perm = s.notifier.RequestPermission()
	}
	if perm != notify.PermissionGranted {
		return
	}
	title := "危机预警"
	if alert.Urgency >= 5 {
		title = "危机预警（最高级）"
	}
	if err := s.notifier.Notify(title, alert.Message); err != nil {
		// 通知只是增强，失败吞掉
		log.Debugf("系统通知发送失败: %v", err)
	}
}

// playSound 尽力播放提示音，任何失败（缺文件、被拦截）都吞掉。
func (s *alertService) playSound() {
	if !s.soundOn || s.player == nil {
		return
	}
	if err := s.player.Play(); err != nil {
		log.Debugf("提示音播放失败: %v", err)
	}
}

func (s *alertService) publishToast(alert model.CrisisAlert) {
	if s.toasts == nil {
		return
	}
	s.toasts.Publish(notify.NewToast("critical", "危机预警", alert.Message, &notify.ToastAction{
		Label: "查看",
		Tab:   "crisis",
	}))
}

// Recent 返回缓冲的拷贝，最新在前。
func (s *alertService) Recent() []model.CrisisAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CrisisAlert, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Respond 将预警标记为已响应。成功后更新缓冲内的状态，失败保持不变。
func (s *alertService) Respond(ctx context.Context, alertID, note string) error {
	if err := s.backend.RespondCrisisAlert(ctx, alertID, note); err != nil {
		return err
	}

	s.mu.Lock()
	var journaled *model.CrisisAlert
	for i := range s.buffer {
		if s.buffer[i].ID == alertID {
			s.buffer[i].Status = model.AlertStatusAcknowledged
			a := s.buffer[i]
			journaled = &a
			break
		}
	}
	s.mu.Unlock()

	if s.journal != nil && journaled != nil {
		if err := s.journal.Record(ctx, *journaled, model.JournalActionAcknowledged, s.actorID); err != nil {
			log.Warnf("审计记录写入失败: %v", err)
		}
	}
	return nil
}

// Resolve 将预警标记为已解决。不做乐观移除：
// 只有后端确认成功，缓冲条目才会消失，避免失败请求导致预警失踪。
func (s *alertService) Resolve(ctx context.Context, alertID string) error {
	if err := s.backend.ResolveCrisisAlert(ctx, alertID); err != nil {
		return err
	}

	s.mu.Lock()
	var removed *model.CrisisAlert
	kept := s.buffer[:0]
	for _, a := range s.buffer {
		if a.ID == alertID {
			a.Status = model.AlertStatusResolved
			copyA := a
			removed = &copyA
			continue
		}
		kept = append(kept, a)
	}
	s.buffer = kept
	s.mu.Unlock()

	if s.journal != nil && removed != nil {
		if err := s.journal.Record(ctx, *removed, model.JournalActionResolved, s.actorID); err != nil {
			log.Warnf("审计记录写入失败: %v", err)
		}
	}
	if s.refresh != nil {
		s.refresh("alert_resolved")
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/pkg/notify"
)

type fakeAlertBackend struct {
	mu          sync.Mutex
	respondErr  error
	resolveErr  error
	respondedID string
	resolvedID  string
}

func (f *fakeAlertBackend) RespondCrisisAlert(ctx context.Context, alertID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.respondedID = alertID
	return nil
}

func (f *fakeAlertBackend) ResolveCrisisAlert(ctx context.Context, alertID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolvedID = alertID
	return nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	permission notify.Permission
	autoGrant  bool
	requests   int
	notified   []string
}

func (f *fakeNotifier) Permission() notify.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

func (f *fakeNotifier) RequestPermission() notify.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.permission == notify.PermissionDefault {
		if f.autoGrant {
			f.permission = notify.PermissionGranted
		} else {
			f.permission = notify.PermissionDenied
		}
	}
	return f.permission
}

func (f *fakeNotifier) Notify(title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permission != notify.PermissionGranted {
		return notify.ErrPermissionDenied
	}
	f.notified = append(f.notified, title)
	return nil
}

type fakeSound struct {
	mu    sync.Mutex
	plays int
	err   error
}

func (f *fakeSound) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return f.err
}

func alertEvent(t *testing.T, id string, urgency int, message string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"id":              id,
		"studentInfo":     map[string]string{"id": "stu-1", "name": "学生甲", "college": "工学院"},
		"message":         message,
		"detectionMethod": "keyword",
		"urgency":         urgency,
		"timestamp":       time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestAlertService(backend *fakeAlertBackend, notifier *fakeNotifier, sound *fakeSound, refresh func(string)) AlertService {
	if refresh == nil {
		refresh = func(string) {}
	}
	return NewAlertService(
		context.Background(),
		10,
		true,
		backend,
		notifier,
		sound,
		notify.NewToastBus(),
		nil,
		NewDeduplicator(5*time.Second),
		refresh,
		"counselor-1",
	)
}

// TestAlertService_BufferHeadAndCap 验证最新预警总在队首，且缓冲永不超容。
func TestAlertService_BufferHeadAndCap(t *testing.T) {
	s := newTestAlertService(&fakeAlertBackend{}, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, nil)

	for i := 0; i < 25; i++ {
		s.HandleAlertEvent(alertEvent(t, fmt.Sprintf("alert-%d", i), 5, "情绪风险"))
		recent := s.Recent()
		if len(recent) > 10 {
			t.Fatalf("缓冲超过容量: %d", len(recent))
		}
		if recent[0].ID != fmt.Sprintf("alert-%d", i) {
			t.Fatalf("队首不是最新预警: got %s", recent[0].ID)
		}
	}

	recent := s.Recent()
	if len(recent) != 10 {
		t.Errorf("期望缓冲保留 10 条，实际 %d", len(recent))
	}
	// 最旧的应当被丢弃
	for _, a := range recent {
		if a.ID == "alert-0" {
			t.Error("最旧的预警应当被挤出缓冲")
		}
	}
}

// TestAlertService_AliasCollapsedByID 验证同一预警经规范名与别名双路到达时只入缓冲一次。
func TestAlertService_AliasCollapsedByID(t *testing.T) {
	s := newTestAlertService(&fakeAlertBackend{}, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, nil)

	event := alertEvent(t, "alert-dup", 4, "同一条预警")
	s.HandleAlertEvent(event)
	s.HandleAlertEvent(event)

	if got := len(s.Recent()); got != 1 {
		t.Errorf("期望缓冲只有 1 条，实际 %d", got)
	}
}

// TestAlertService_NotificationPermission 验证通知权限生命周期。
func TestAlertService_NotificationPermission(t *testing.T) {
	tests := []struct {
		name         string
		permission   notify.Permission
		autoGrant    bool
		wantRequests int
		wantNotified int
	}{
		{"granted 直接弹", notify.PermissionGranted, false, 0, 1},
		{"default 先请求后弹", notify.PermissionDefault, true, 1, 1},
		{"default 请求被拒不弹", notify.PermissionDefault, false, 1, 0},
		{"denied 永不弹", notify.PermissionDenied, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{permission: tt.permission, autoGrant: tt.autoGrant}
			s := newTestAlertService(&fakeAlertBackend{}, notifier, &fakeSound{}, nil)

			s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))

			if notifier.requests != tt.wantRequests {
				t.Errorf("权限请求次数: got %d, want %d", notifier.requests, tt.wantRequests)
			}
			if len(notifier.notified) != tt.wantNotified {
				t.Errorf("通知次数: got %d, want %d", len(notifier.notified), tt.wantNotified)
			}
		})
	}
}

// TestAlertService_SoundFailureSwallowed 验证提示音失败被吞掉，预警照常入缓冲。
func TestAlertService_SoundFailureSwallowed(t *testing.T) {
	sound := &fakeSound{err: errors.New("autoplay blocked")}
	s := newTestAlertService(&fakeAlertBackend{}, &fakeNotifier{permission: notify.PermissionDenied}, sound, nil)

	s.HandleAlertEvent(alertEvent(t, "alert-1", 3, "中危信号"))

	if sound.plays != 1 {
		t.Errorf("提示音应当尝试播放一次，实际 %d", sound.plays)
	}
	if len(s.Recent()) != 1 {
		t.Error("提示音失败不应影响预警入缓冲")
	}
}

// TestAlertService_RefreshHint 验证预警到达触发权威数据刷新。
func TestAlertService_RefreshHint(t *testing.T) {
	var mu sync.Mutex
	var reasons []string
	s := newTestAlertService(&fakeAlertBackend{}, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, func(reason string) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	})

	s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 {
		t.Errorf("期望触发一次刷新，实际 %d", len(reasons))
	}
}

// TestAlertService_ResolveRemovesOnSuccess 验证后端确认后缓冲条目才移除。
func TestAlertService_ResolveRemovesOnSuccess(t *testing.T) {
	backend := &fakeAlertBackend{}
	s := newTestAlertService(backend, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, nil)

	s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))
	s.HandleAlertEvent(alertEvent(t, "alert-2", 4, "中危信号"))

	if err := s.Resolve(context.Background(), "alert-1"); err != nil {
		t.Fatalf("resolve 不应失败: %v", err)
	}
	if backend.resolvedID != "alert-1" {
		t.Errorf("后端应收到 resolve 调用: got %q", backend.resolvedID)
	}

	recent := s.Recent()
	if len(recent) != 1 || recent[0].ID != "alert-2" {
		t.Errorf("resolve 成功后 alert-1 应被移除, 剩余 %v", recent)
	}
}

// TestAlertService_ResolveKeepsOnFailure 验证失败的 resolve 不改变缓冲。
func TestAlertService_ResolveKeepsOnFailure(t *testing.T) {
	backend := &fakeAlertBackend{resolveErr: errors.New("backend unavailable")}
	s := newTestAlertService(backend, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, nil)

	s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))

	if err := s.Resolve(context.Background(), "alert-1"); err == nil {
		t.Fatal("后端失败时 resolve 应返回错误")
	}
	recent := s.Recent()
	if len(recent) != 1 || recent[0].ID != "alert-1" {
		t.Error("失败的 resolve 不应移除缓冲条目")
	}
	if recent[0].Status != model.AlertStatusActive {
		t.Errorf("失败的 resolve 不应改变状态: got %s", recent[0].Status)
	}
}

// TestAlertService_RespondMarksAcknowledged 验证 respond 成功后状态迁移为 acknowledged。
func TestAlertService_RespondMarksAcknowledged(t *testing.T) {
	backend := &fakeAlertBackend{}
	s := newTestAlertService(backend, &fakeNotifier{permission: notify.PermissionDenied}, &fakeSound{}, nil)

	s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))

	if err := s.Respond(context.Background(), "alert-1", "已联系学生"); err != nil {
		t.Fatalf("respond 不应失败: %v", err)
	}

	recent := s.Recent()
	if len(recent) != 1 {
		t.Fatalf("respond 不应移除缓冲条目, 剩余 %d", len(recent))
	}
	if recent[0].Status != model.AlertStatusAcknowledged {
		t.Errorf("状态应为 acknowledged: got %s", recent[0].Status)
	}
}

// TestAlertService_ToastCarriesCrisisTabAction 验证 toast 携带跳转危机页签的动作。
func TestAlertService_ToastCarriesCrisisTabAction(t *testing.T) {
	toasts := notify.NewToastBus()
	ch, cancel := toasts.Subscribe()
	defer cancel()

	s := NewAlertService(
		context.Background(),
		10,
		false,
		&fakeAlertBackend{},
		&fakeNotifier{permission: notify.PermissionDenied},
		&fakeSound{},
		toasts,
		nil,
		NewDeduplicator(5*time.Second),
		func(string) {},
		"admin-1",
	)

	s.HandleAlertEvent(alertEvent(t, "alert-1", 5, "高危信号"))

	select {
	case toast := <-ch:
		if toast.Action == nil || toast.Action.Tab != "crisis" {
			t.Errorf("toast 动作应指向 crisis 页签: %+v", toast.Action)
		}
	case <-time.After(time.Second):
		t.Fatal("未收到 toast")
	}
}

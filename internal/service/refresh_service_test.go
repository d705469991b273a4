package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mindbridge-go/internal/model"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	next  *model.DashboardSnapshot
	err   error
}

func (f *fakeFetcher) GetDashboard(ctx context.Context) (*model.DashboardSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.next, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TestRefreshService_ApplyAndLastUpdate 验证刷新成功后快照被整体替换、lastUpdate 前进。
func TestRefreshService_ApplyAndLastUpdate(t *testing.T) {
	fetcher := &fakeFetcher{next: &model.DashboardSnapshot{TotalStudents: 42}}
	s := NewRefreshService(fetcher, time.Minute).(*refreshService)

	if !s.LastUpdate().IsZero() {
		t.Fatal("初始 lastUpdate 应为零值")
	}

	s.refresh(1)

	if got := s.Snapshot().TotalStudents; got != 42 {
		t.Errorf("快照未被应用: got %d", got)
	}
	if s.LastUpdate().IsZero() {
		t.Error("刷新成功后 lastUpdate 应更新")
	}
}

// TestRefreshService_LastWriteWinsBySequence 验证迟到的旧响应被序号仲裁丢弃。
func TestRefreshService_LastWriteWinsBySequence(t *testing.T) {
	fetcher := &fakeFetcher{next: &model.DashboardSnapshot{TotalStudents: 2}}
	s := NewRefreshService(fetcher, time.Minute).(*refreshService)

	// 序号 2 的响应先到并应用
	s.refresh(2)
	if got := s.Snapshot().TotalStudents; got != 2 {
		t.Fatalf("快照未被应用: got %d", got)
	}

	// 序号 1 的响应迟到，携带旧数据，必须被丢弃
	fetcher.mu.Lock()
	fetcher.next = &model.DashboardSnapshot{TotalStudents: 1}
	fetcher.mu.Unlock()
	s.refresh(1)

	if got := s.Snapshot().TotalStudents; got != 2 {
		t.Errorf("迟到的旧响应覆盖了新数据: got %d", got)
	}
}

// TestRefreshService_FailureLeavesStateUnchanged 验证失败的刷新不覆盖已有快照。
func TestRefreshService_FailureLeavesStateUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{next: &model.DashboardSnapshot{TotalStudents: 7}}
	s := NewRefreshService(fetcher, time.Minute).(*refreshService)

	s.refresh(1)
	before := s.LastUpdate()

	fetcher.mu.Lock()
	fetcher.err = errors.New("backend down")
	fetcher.mu.Unlock()
	s.refresh(2)

	if got := s.Snapshot().TotalStudents; got != 7 {
		t.Errorf("失败的刷新覆盖了已有快照: got %d", got)
	}
	if !s.LastUpdate().Equal(before) {
		t.Error("失败的刷新不应更新 lastUpdate")
	}
}

// TestRefreshService_ZeroedFallbackWhenEmpty 验证没有任何数据时失败回退到零值快照。
func TestRefreshService_ZeroedFallbackWhenEmpty(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	s := NewRefreshService(fetcher, time.Minute).(*refreshService)

	s.refresh(1)

	snapshot := s.Snapshot()
	if snapshot == nil {
		t.Fatal("即使刷新失败也不应返回 nil 快照")
	}
	if snapshot.RiskDistribution == nil {
		t.Error("零值快照的字段应当可安全访问")
	}
}

// TestRefreshService_IntervalFallback 验证兜底轮询按周期发起刷新并随 ctx 停止。
func TestRefreshService_IntervalFallback(t *testing.T) {
	fetcher := &fakeFetcher{next: &model.DashboardSnapshot{}}
	s := NewRefreshService(fetcher, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	// 启动刷新 + 至少两个周期
	time.Sleep(110 * time.Millisecond)
	cancel()

	calls := fetcher.callCount()
	if calls < 3 {
		t.Errorf("期望至少 3 次刷新（启动一次 + 两个周期），实际 %d", calls)
	}
	if s.LastUpdate().IsZero() {
		t.Error("周期刷新后 lastUpdate 应更新")
	}

	// 取消后不再发起新刷新
	time.Sleep(30 * time.Millisecond)
	settled := fetcher.callCount()
	time.Sleep(60 * time.Millisecond)
	if fetcher.callCount() != settled {
		t.Error("ctx 取消后轮询应停止")
	}
}

// TestRefreshService_EventHandlerTriggers 验证 socket 事件触发刷新。
func TestRefreshService_EventHandlerTriggers(t *testing.T) {
	fetcher := &fakeFetcher{next: &model.DashboardSnapshot{}}
	s := NewRefreshService(fetcher, time.Minute)

	handler := s.EventHandler("student_activity")
	handler(nil)

	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("事件触发后未发起刷新")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/pkg/log"
)

// DashboardFetcher 是刷新器需要的权威数据来源。
type DashboardFetcher interface {
	GetDashboard(ctx context.Context) (*model.DashboardSnapshot, error)
}

// RefreshService 定义了仪表盘实时刷新的接口。
type RefreshService interface {
	// Run 启动固定间隔的兜底轮询，直到 ctx 取消。socket 投递丢失时靠它保活。
	Run(ctx context.Context)
	// Trigger 立即发起一次刷新。刷新请求即发即忘、不排队，
	// 并发请求由序号仲裁，后到的旧响应被丢弃。
	Trigger(reason string)
	// EventHandler 返回一个把 socket 事件转换为刷新触发的处理器。
	EventHandler(event string) func(json.RawMessage)
	// Snapshot 返回当前快照（整体替换语义，从不逐字段修补）。
	Snapshot() *model.DashboardSnapshot
	// LastUpdate 返回最近一次成功刷新的时间。
	LastUpdate() time.Time
}

type refreshService struct {
	fetcher  DashboardFetcher
	interval time.Duration

	// seq 为每个刷新请求签发单调递增序号
	seq uint64

	mu         sync.Mutex
	runCtx     context.Context
	snapshot   *model.DashboardSnapshot
	applied    uint64
	lastUpdate time.Time
}

// NewRefreshService 创建仪表盘刷新服务。
func NewRefreshService(fetcher DashboardFetcher, interval time.Duration) RefreshService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &refreshService{
		fetcher:  fetcher,
		interval: interval,
		runCtx:   context.Background(),
	}
}

// Run 启动兜底轮询。ticker 随 ctx 取消一并停止，
// 不会对已卸载的视图继续发起刷新。
func (s *refreshService) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	// 启动时先刷一次，视图不用等第一个周期
	s.Trigger("startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Trigger("interval")
		}
	}
}

// Trigger 发起一次异步刷新。
func (s *refreshService) Trigger(reason string) {
	seq := atomic.AddUint64(&s.seq, 1)
	log.Debugf("仪表盘刷新触发: reason=%s seq=%d", reason, seq)
	go s.refresh(seq)
}

// refresh 执行一次刷新并按序号决定是否应用结果。
// 序号低于已应用值的响应是迟到的旧数据，直接丢弃，
// 这把“最后写入者胜”从到达顺序的巧合变成显式规则。
func (s *refreshService) refresh(seq uint64) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	snapshot, err := s.fetcher.GetDashboard(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.Warnf("仪表盘刷新失败: %v", err)
		// 失败不覆盖已有状态；只在完全没有数据时给零值兜底，避免上层拿到 nil
		if s.snapshot == nil {
			s.snapshot = model.EmptySnapshot()
		}
		return
	}

	if seq < s.applied {
		log.Debugf("丢弃过期的刷新响应: seq=%d applied=%d", seq, s.applied)
		return
	}
	s.applied = seq
	s.snapshot = snapshot
	s.lastUpdate = time.Now()
}

// EventHandler 把一个 socket 事件绑定为刷新触发器。
// 事件载荷本身不参与状态更新：推送只是提示，数据以 REST 为准。
func (s *refreshService) EventHandler(event string) func(json.RawMessage) {
	return func(json.RawMessage) {
		s.Trigger(event)
	}
}

// Snapshot 返回当前快照。
func (s *refreshService) Snapshot() *model.DashboardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return model.EmptySnapshot()
	}
	return s.snapshot
}

// LastUpdate 返回最近一次成功刷新的时间。
func (s *refreshService) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

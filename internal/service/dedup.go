// Package service 包含了中继管线的业务逻辑层。
package service

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// Deduplicator 抑制时间窗口内的重复事件。
// 服务端对同一条逻辑回复可能同时做点对点推送和广播，
// 这里用 发送方+文本 的指纹近集（带 TTL 淘汰）判重，
// 不再逐条扫描消息列表。
type Deduplicator struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewDeduplicator 创建一个判重器，window 是判重时间窗口。
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// fingerprint 计算一条消息的指纹。
func fingerprint(sender, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sender))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 16)
}

// ShouldAppend 判断候选消息应当追加还是丢弃。
// 纯判定逻辑，没有网络或定时器副作用；判定为追加时记录指纹。
func (d *Deduplicator) ShouldAppend(sender, text string) bool {
	key := fingerprint(sender, text)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// 先淘汰过期指纹，近集的大小由窗口自然约束
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}

	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

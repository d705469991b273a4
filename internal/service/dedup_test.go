package service

import (
	"fmt"
	"testing"
	"time"
)

// TestDeduplicator_SuppressWithinWindow 验证窗口内的同指纹消息被抑制。
func TestDeduplicator_SuppressWithinWindow(t *testing.T) {
	now := time.Now()
	d := NewDeduplicator(5 * time.Second)
	d.now = func() time.Time { return now }

	if !d.ShouldAppend("ai", "I hear you...") {
		t.Fatal("首次出现的消息应当追加")
	}

	// 2 秒后同一条回复再次到达（点对点与广播双路投递）
	now = now.Add(2 * time.Second)
	if d.ShouldAppend("ai", "I hear you...") {
		t.Error("窗口内的重复消息应当被抑制")
	}
}

// TestDeduplicator_AppendAfterWindow 验证窗口过后同文本可以再次追加。
func TestDeduplicator_AppendAfterWindow(t *testing.T) {
	now := time.Now()
	d := NewDeduplicator(5 * time.Second)
	d.now = func() time.Time { return now }

	if !d.ShouldAppend("ai", "How are you feeling today?") {
		t.Fatal("首次出现的消息应当追加")
	}

	now = now.Add(6 * time.Second)
	if !d.ShouldAppend("ai", "How are you feeling today?") {
		t.Error("窗口过后同文本应当允许再次追加")
	}
}

// TestDeduplicator_DistinctSenderOrText 验证不同发送方或不同文本互不影响。
func TestDeduplicator_DistinctSenderOrText(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		text   string
	}{
		{"不同文本", "ai", "another reply"},
		{"不同发送方", "user", "I hear you..."},
		{"系统消息", "system", "I hear you..."},
	}

	d := NewDeduplicator(5 * time.Second)
	if !d.ShouldAppend("ai", "I hear you...") {
		t.Fatal("首次出现的消息应当追加")
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !d.ShouldAppend(tt.sender, tt.text) {
				t.Errorf("(%s, %q) 不应被抑制", tt.sender, tt.text)
			}
		})
	}
}

// TestDeduplicator_NeverTwoWithinWindow 验证任意事件序列下，
// 窗口内不会出现两条同指纹的追加判定。
func TestDeduplicator_NeverTwoWithinWindow(t *testing.T) {
	now := time.Now()
	d := NewDeduplicator(5 * time.Second)
	d.now = func() time.Time { return now }

	appended := make(map[string]time.Time)
	for i := 0; i < 200; i++ {
		text := fmt.Sprintf("reply-%d", i%7)
		if d.ShouldAppend("ai", text) {
			if prev, ok := appended[text]; ok && now.Sub(prev) < 5*time.Second {
				t.Fatalf("窗口内第二次追加了同指纹消息: %q, 间隔 %s", text, now.Sub(prev))
			}
			appended[text] = now
		}
		now = now.Add(300 * time.Millisecond)
	}
}

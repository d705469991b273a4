package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToastAction 是 toast 上的动作按钮，Tab 指向要切换到的页签。
type ToastAction struct {
	Label string `json:"label"`
	Tab   string `json:"tab"`
}

// Toast 是推送给桌面 UI 的一条浮层提示。
type Toast struct {
	ID        string       `json:"id"`
	Level     string       `json:"level"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Action    *ToastAction `json:"action,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// NewToast 构造一条 toast 并分配 ID。
func NewToast(level, title, message string, action *ToastAction) Toast {
	return Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		Action:    action,
		CreatedAt: time.Now(),
	}
}

// ToastBus 把 toast 扇出给所有订阅者（本地 UI 的流式连接）。
// 订阅者消费慢时丢弃而不是阻塞：toast 是提示，不是事实来源。
type ToastBus struct {
	mu   sync.Mutex
	subs map[string]chan Toast
}

// NewToastBus 创建一个 toast 总线。
func NewToastBus() *ToastBus {
	return &ToastBus{subs: make(map[string]chan Toast)}
}

// Subscribe 注册一个订阅者，返回接收通道和取消函数。
func (b *ToastBus) Subscribe() (<-chan Toast, func()) {
	id := uuid.NewString()
	ch := make(chan Toast, 16)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish 把一条 toast 投递给所有订阅者。
func (b *ToastBus) Publish(t Toast) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

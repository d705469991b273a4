// Package notify 提供桌面通知、提示音与 toast 三类通知能力。
// 桌面通知有显式的权限生命周期，与浏览器 Notification.permission 对齐；
// 通知与音频都是尽力而为的增强，失败一律吞掉，不向上抛错。
package notify

import (
	"errors"
	"sync"

	"github.com/gen2brain/beeep"
)

// Permission 是通知权限状态。
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ErrPermissionDenied 在权限为 denied 时调用 Notify 返回。
// 正确的调用方永远不该触发它：denied 状态下连通知调用都不允许发起。
var ErrPermissionDenied = errors.New("notify: permission denied")

// Notifier 是桌面通知的抽象。
type Notifier interface {
	// Permission 返回当前权限状态。
	Permission() Permission
	// RequestPermission 在 default 状态下发起权限请求并返回结果；
	// 其余状态下直接返回当前状态。
	RequestPermission() Permission
	// Notify 弹出一条系统通知。权限不是 granted 时必须返回错误而非弹出。
	Notify(title, body string) error
}

// DesktopNotifier 基于系统通知中心实现 Notifier。
// 无头环境没有交互式授权弹窗，default 状态的请求结果由配置决定。
type DesktopNotifier struct {
	mu         sync.Mutex
	permission Permission
	autoGrant  bool
}

// NewDesktopNotifier 创建一个桌面通知器。initial 非法时按 default 处理。
func NewDesktopNotifier(initial string, autoGrant bool) *DesktopNotifier {
	p := Permission(initial)
	if p != PermissionGranted && p != PermissionDenied {
		p = PermissionDefault
	}
	return &DesktopNotifier{permission: p, autoGrant: autoGrant}
}

// Permission 返回当前权限状态。
func (n *DesktopNotifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.permission
}

// RequestPermission 处理 default → granted|denied 的一次性迁移。
func (n *DesktopNotifier) RequestPermission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.permission != PermissionDefault {
		return n.permission
	}
	if n.autoGrant {
		n.permission = PermissionGranted
	} else {
		n.permission = PermissionDenied
	}
	return n.permission
}

// Notify 弹出系统通知。
func (n *DesktopNotifier) Notify(title, body string) error {
	if n.Permission() != PermissionGranted {
		return ErrPermissionDenied
	}
	return beeep.Notify(title, body, "")
}

// SoundPlayer 播放提示音。
type SoundPlayer interface {
	Play() error
}

// BeepPlayer 用系统蜂鸣实现提示音。
type BeepPlayer struct{}

// Play 播放一声提示音。
func (BeepPlayer) Play() error {
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

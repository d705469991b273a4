package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/token"
)

// Emitter 是加入协议需要的最小发送能力，便于在测试中替换。
type Emitter interface {
	Emit(event string, data interface{}) error
}

// IdentitySource 提供当前身份。
type IdentitySource interface {
	Identity() (token.Identity, error)
}

// joinUserRoom 是个人房间的加入载荷，服务端据此做点对点投递。
type joinUserRoom struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// joinCounselorRoom 是按学院/角色划分的房间加入载荷。
// 服务端按学院把危机预警扇出到这些房间，重连后漏加入会静默丢失预警。
type joinCounselorRoom struct {
	CounselorID string `json:"counselorId"`
	College     string `json:"college"`
	Role        string `json:"role"`
}

// Joiner 实现房间加入协议。协议是幂等的，每次连接建立（含重连）都要完整重跑。
type Joiner struct {
	emitter  Emitter
	identity IdentitySource

	mu    sync.Mutex
	joins int
}

// NewJoiner 创建一个 Joiner。
func NewJoiner(emitter Emitter, identity IdentitySource) *Joiner {
	return &Joiner{emitter: emitter, identity: identity}
}

// JoinAll 发出与当前身份对应的全部房间加入事件：
// 个人房间必发；辅导员/管理员身份额外加入学院房间。
func (j *Joiner) JoinAll() error {
	ident, err := j.identity.Identity()
	if err != nil {
		return fmt.Errorf("cannot join rooms without identity: %w", err)
	}

	if err := j.emitter.Emit(EventJoinUserRoom, joinUserRoom{
		UserID: ident.UserID,
		Role:   ident.Role,
	}); err != nil {
		return fmt.Errorf("join-user-room emit failed: %w", err)
	}

	if ident.IsCounselor() {
		if err := j.emitter.Emit(EventJoinCounselorRoom, joinCounselorRoom{
			CounselorID: ident.UserID,
			College:     ident.College,
			Role:        ident.Role,
		}); err != nil {
			return fmt.Errorf("join-counselor-room emit failed: %w", err)
		}
	}

	j.mu.Lock()
	j.joins++
	j.mu.Unlock()
	log.Infof("房间加入事件已发出, user=%s role=%s", ident.UserID, ident.Role)
	return nil
}

// JoinCount 返回已完成的加入轮次，主要供测试与状态接口使用。
func (j *Joiner) JoinCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.joins
}

// HandleRoomJoined 处理服务端的 room_joined 确认。
// 确认只用于记录，协议的正确性不依赖它。
func (j *Joiner) HandleRoomJoined(data json.RawMessage) {
	var ack struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		log.Warnf("无法解析 room_joined 载荷: %v", err)
		return
	}
	log.Infof("服务端确认加入房间: %s", ack.Room)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/realtime"

	"github.com/google/uuid"
)

// SessionBackend 是会话状态管理需要的后端能力。
type SessionBackend interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	SendSessionMessage(ctx context.Context, sessionID string, msg model.ChatMessage) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}

// SessionService 管理 AI 会话与辅导员会话的本地状态：
// REST 历史与 socket 实时投递在这里合流。
type SessionService interface {
	// LoadSessions 拉取会话列表。
	LoadSessions(ctx context.Context) error
	// Sessions 返回已知的会话列表。
	Sessions() []model.Session
	// Open 打开一个会话：整体拉取历史并替换本地消息，从不增量修补。
	Open(ctx context.Context, sessionID string) error
	// Current 返回当前打开的会话。ID 为空表示尚未持久化的新会话。
	Current() model.Session
	// Send 发送一条消息：先乐观追加本地条目，再走 REST 与 socket。
	// 新会话的首条消息发送成功后，必须捕获后端签发的会话 ID。
	Send(ctx context.Context, text, mood string) (model.ChatMessage, error)
	// HandleAIResponse 处理 ai-response 事件，经判重后追加 AI 回复。
	HandleAIResponse(data json.RawMessage)
	// Typing 返回 AI 是否正在回复（可见延迟必须有指示）。
	Typing() bool
	// Delete 删除会话。后端确认成功后才移除本地状态；
	// 删除的是当前会话时，重置为空白新会话。
	Delete(ctx context.Context, sessionID string) error

	// LoadConversations 拉取辅导员的学生会话列表。
	LoadConversations(ctx context.Context) error
	// Conversations 返回会话列表。
	Conversations() []model.Conversation
	// SendDirect 向学生发送一条私信（乐观追加 + send-message 事件）。
	SendDirect(ctx context.Context, conversationID, recipientID, content, priority string) error
	// HandleNewMessage 处理 new_message 事件，并入对应会话。
	HandleNewMessage(data json.RawMessage)
}

type sessionService struct {
	backend SessionBackend
	emitter realtime.Emitter
	dedup   *Deduplicator
	userID  string

	mu            sync.Mutex
	sessions      []model.Session
	current       model.Session
	typing        bool
	conversations []model.Conversation
}

// NewSessionService 创建会话状态服务。userID 是当前登录身份。
func NewSessionService(backend SessionBackend, emitter realtime.Emitter, dedup *Deduplicator, userID string) SessionService {
	return &sessionService{
		backend: backend,
		emitter: emitter,
		dedup:   dedup,
		userID:  userID,
		current: model.Session{UserID: userID},
	}
}

// LoadSessions 拉取会话列表并整体替换。
func (s *sessionService) LoadSessions(ctx context.Context) error {
	sessions, err := s.backend.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	return nil
}

// Sessions 返回会话列表的拷贝。
func (s *sessionService) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Open 打开一个会话并整体加载历史。
func (s *sessionService) Open(ctx context.Context, sessionID string) error {
	messages, err := s.backend.GetSessionMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session history: %w", err)
	}
	s.mu.Lock()
	s.current = model.Session{ID: sessionID, UserID: s.userID, Messages: messages}
	s.typing = false
	s.mu.Unlock()
	return nil
}

// Current 返回当前会话的拷贝。
func (s *sessionService) Current() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current
	cur.Messages = append([]model.ChatMessage{}, s.current.Messages...)
	return cur
}

// userMessagePayload 是 user-message 事件的载荷。
type userMessagePayload struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Mood      string `json:"mood"`
}

// Send 发送一条消息。
func (s *sessionService) Send(ctx context.Context, text, mood string) (model.ChatMessage, error) {
	s.mu.Lock()
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Text:      text,
		Timestamp: time.Now(),
		SessionID: s.current.ID,
	}
	// 乐观追加：不等后端确认，消息立即可见
	s.current.Messages = append(s.current.Messages, msg)
	s.typing = true
	sessionID := s.current.ID
	s.mu.Unlock()

	newID, err := s.backend.SendSessionMessage(ctx, sessionID, msg)
	if err != nil {
		s.mu.Lock()
		s.typing = false
		s.mu.Unlock()
		// 乐观条目保留，状态不回滚；错误交由上层以 toast 呈现
		return msg, fmt.Errorf("failed to send message: %w", err)
	}

	if sessionID == "" && newID != "" {
		// 首条消息创建了会话：捕获正式 ID，后续发送都用它
		s.mu.Lock()
		s.current.ID = newID
		s.current.CreatedAt = time.Now()
		sessionID = newID
		s.mu.Unlock()
		log.Infof("会话已创建: %s", newID)
	}

	if err := s.emitter.Emit(realtime.EventUserMessage, userMessagePayload{
		Message:   text,
		UserID:    s.userID,
		SessionID: sessionID,
		Mood:      mood,
	}); err != nil {
		// socket 发送失败不影响 REST 已落库的事实
		log.Warnf("user-message 事件发送失败: %v", err)
	}
	return msg, nil
}

// aiResponsePayload 是 ai-response 事件的载荷。
type aiResponsePayload struct {
	Message       string    `json:"message"`
	SessionID     string    `json:"sessionId"`
	TherapistName string    `json:"therapistName"`
	Timestamp     time.Time `json:"timestamp"`
	IsAlert       bool      `json:"isAlert"`
	AlertType     string    `json:"alertType"`
}

// HandleAIResponse 处理一条 AI 回复。
// 同一条逻辑回复可能被点对点与广播各推一次，由判重器折叠。
func (s *sessionService) HandleAIResponse(data json.RawMessage) {
	var payload aiResponsePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("无法解析 ai-response 载荷: %v", err)
		return
	}

	if s.dedup != nil && !s.dedup.ShouldAppend(model.SenderAI, payload.Message) {
		log.Debugf("重复的 AI 回复已抑制")
		return
	}

	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := model.ChatMessage{
		ID:            uuid.NewString(),
		Sender:        model.SenderAI,
		Text:          payload.Message,
		Timestamp:     ts,
		SessionID:     payload.SessionID,
		TherapistName: payload.TherapistName,
		IsAlert:       payload.IsAlert,
		AlertType:     payload.AlertType,
	}

	s.mu.Lock()
	s.current.Messages = append(s.current.Messages, msg)
	s.typing = false
	s.mu.Unlock()
}

// Typing 返回 AI 是否正在回复。
func (s *sessionService) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Delete 删除一个会话。
func (s *sessionService) Delete(ctx context.Context, sessionID string) error {
	if err := s.backend.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.mu.Lock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != sessionID {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if s.current.ID == sessionID {
		// 删除的是打开中的会话，回到空白新会话状态
		s.current = model.Session{UserID: s.userID}
		s.typing = false
	}
	s.mu.Unlock()
	return nil
}

// LoadConversations 拉取辅导员会话列表并整体替换。
func (s *sessionService) LoadConversations(ctx context.Context) error {
	conversations, err := s.backend.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return nil
}

// Conversations 返回会话列表的拷贝。
func (s *sessionService) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// directMessagePayload 是 send-message 事件的载荷。
type directMessagePayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
	Priority       string `json:"priority"`
}

// SendDirect 发送一条辅导员私信。
func (s *sessionService) SendDirect(ctx context.Context, conversationID, recipientID, content, priority string) error {
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Text:      content,
		Timestamp: time.Now(),
		SessionID: conversationID,
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].Messages = append(s.conversations[i].Messages, msg)
			break
		}
	}
	s.mu.Unlock()

	return s.emitter.Emit(realtime.EventSendMessage, directMessagePayload{
		ConversationID: conversationID,
		SenderID:       s.userID,
		RecipientID:    recipientID,
		Content:        content,
		Priority:       priority,
	})
}

// newMessagePayload 是 new_message 事件的载荷。
type newMessagePayload struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// HandleNewMessage 把一条实时私信并入所属会话。
// 自己发出的消息已经乐观追加过，这里跳过回显。
func (s *sessionService) HandleNewMessage(data json.RawMessage) {
	var payload newMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("无法解析 new_message 载荷: %v", err)
		return
	}
	if payload.SenderID == s.userID {
		return
	}

	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    model.SenderUser,
		Text:      payload.Content,
		Timestamp: ts,
		SessionID: payload.ConversationID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == payload.ConversationID {
			s.conversations[i].Messages = append(s.conversations[i].Messages, msg)
			return
		}
	}
	// 未知会话：本地先建占位，权威数据由下一次列表刷新补齐
	s.conversations = append(s.conversations, model.Conversation{
		ID:        payload.ConversationID,
		Messages:  []model.ChatMessage{msg},
		CreatedAt: ts,
	})
}

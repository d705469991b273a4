// Package backend 提供了访问 MindBridge 后端 REST 接口的客户端。
// 所有请求都携带 Authorization: Bearer 头，token 来自注入的凭证提供者。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/pkg/token"
)

// Client 封装了对后端 REST 接口的调用。
type Client struct {
	baseURL string
	client  *http.Client
	tokens  token.Provider
}

// NewClient 创建一个后端客户端。
func NewClient(baseURL string, timeout time.Duration, tokens token.Provider) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// apiResponse 是后端统一的响应包装。
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do 执行一次请求并将 data 字段解码到 out（out 为 nil 时忽略响应体）。
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("no credential available: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != 0 && envelope.Code != http.StatusOK {
		return fmt.Errorf("backend error: %s", envelope.Message)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode data field: %w", err)
	}
	return nil
}

// ListCrisisAlerts 拉取完整的危机预警列表（权威数据，socket 推送只是刷新提示）。
func (c *Client) ListCrisisAlerts(ctx context.Context) ([]model.CrisisAlert, error) {
	var alerts []model.CrisisAlert
	if err := c.do(ctx, http.MethodGet, "/api/admin/crisis-alerts", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// RespondCrisisAlert 将一条预警标记为已响应（active → acknowledged）。
func (c *Client) RespondCrisisAlert(ctx context.Context, alertID, note string) error {
	body := map[string]string{"note": note}
	return c.do(ctx, http.MethodPost, "/api/admin/crisis-alerts/"+alertID+"/respond", body, nil)
}

// ResolveCrisisAlert 将一条预警标记为已解决。
func (c *Client) ResolveCrisisAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPost, "/api/counselor/crisis-alerts/"+alertID+"/resolve", nil, nil)
}

// GetDashboard 拉取仪表盘聚合数据。
func (c *Client) GetDashboard(ctx context.Context) (*model.DashboardSnapshot, error) {
	var snapshot model.DashboardSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/admin/dashboard", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListAppointments 拉取预约列表。
func (c *Client) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	var appointments []model.Appointment
	if err := c.do(ctx, http.MethodGet, "/api/appointments", nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// ListSessions 拉取当前用户的 AI 会话列表。
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.do(ctx, http.MethodGet, "/api/ai-sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionMessages 拉取某个会话的完整消息历史。
func (c *Client) GetSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/ai-sessions/"+sessionID+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// sessionCreated 是创建会话时后端返回的载荷。
type sessionCreated struct {
	SessionID string `json:"sessionId"`
}

// SendSessionMessage 向会话追加一条消息。sessionID 为空表示这是
// 新会话的首条消息：后端会创建会话并返回正式的会话 ID，
// 之后的发送都必须使用该 ID。
func (c *Client) SendSessionMessage(ctx context.Context, sessionID string, msg model.ChatMessage) (string, error) {
	if sessionID == "" {
		var created sessionCreated
		body := map[string]interface{}{"message": msg.Text, "timestamp": msg.Timestamp}
		if err := c.do(ctx, http.MethodPost, "/api/ai-sessions", body, &created); err != nil {
			return "", err
		}
		return created.SessionID, nil
	}

	body := map[string]interface{}{"message": msg.Text, "timestamp": msg.Timestamp}
	if err := c.do(ctx, http.MethodPost, "/api/ai-sessions/"+sessionID+"/messages", body, nil); err != nil {
		return "", err
	}
	return sessionID, nil
}

// DeleteSession 删除一个会话。调用方必须等待本方法成功返回后
// 才能移除本地状态。
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/ai-sessions/"+sessionID, nil, nil)
}

// ListConversations 拉取辅导员的学生会话列表。
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetConversationMessages 拉取某个会话的消息历史。
func (c *Client) GetConversationMessages(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/messages/conversations/"+conversationID, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/token"

	"github.com/gorilla/websocket"
)

// State 是连接状态机的状态。
// 状态迁移：Disconnected → Connecting → Connected → Joined → Disconnected …
// 房间加入协议是 Connected → Joined 的迁移动作，每次连接（含重连）都会执行。
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoined
)

// String 返回状态的可读名称。
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// ErrNotConnected 在连接断开期间尝试发送事件时返回。
var ErrNotConnected = errors.New("realtime: not connected")

// Options 是连接管理器的配置。
type Options struct {
	Endpoint     string
	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client 维护到后端的唯一一条 WebSocket 连接。
// 一个视图（中继实例）独占一个 Client，不跨实例共享。
type Client struct {
	opts   Options
	tokens token.Provider

	mu       sync.RWMutex
	state    State
	conn     *websocket.Conn
	handlers map[string][]Handler
	// connectHooks 在每次连接建立后执行，全部成功后状态进入 Joined。
	connectHooks []func() error
	stateHooks   []func(State)

	writeMu sync.Mutex
}

// NewClient 创建一个连接管理器，此时尚未拨号。
func NewClient(opts Options, tokens token.Provider) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 20 * time.Second
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	return &Client{
		opts:     opts,
		tokens:   tokens,
		state:    StateDisconnected,
		handlers: make(map[string][]Handler),
	}
}

// On 为指定事件注册一个处理器。同一事件可以注册多个处理器。
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect 注册一个在每次连接建立后执行的钩子（含重连）。
// 房间加入协议通过它挂载，保证重连后不漏加入。
func (c *Client) OnConnect(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHooks = append(c.connectHooks, fn)
}

// OnStateChange 注册状态变化回调。
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHooks = append(c.stateHooks, fn)
}

// State 返回当前连接状态。
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected 返回连接是否可用（Connected 或 Joined）。
func (c *Client) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateJoined
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	hooks := append([]func(State){}, c.stateHooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}

// Emit 向服务端发送一个事件。写操作内部串行化，可以被多个 goroutine 调用。
func (c *Client) Emit(event string, data interface{}) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()
	if conn == nil || (state != StateConnected && state != StateJoined) {
		return ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Run 驱动连接生命周期直到 ctx 取消：拨号、读循环、断线后退避重连。
// 连接断开不是致命错误，30 秒轮询兜底由上层刷新器负责。
func (c *Client) Run(ctx context.Context) {
	backoff := c.opts.ReconnectMin
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			log.Warnf("WebSocket 连接失败: %v，%s 后重试", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.opts.ReconnectMax {
				backoff = c.opts.ReconnectMax
			}
			continue
		}

		// 连接成功后重置退避
		backoff = c.opts.ReconnectMin

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)
		log.Infof("WebSocket 连接已建立: %s", c.opts.Endpoint)

		c.runConnectHooks()
		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warnf("WebSocket 连接断开，%s 后重连", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// dial 以有界超时建立连接，携带 Bearer 凭证。
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}

	header := http.Header{}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("no credential for websocket: %w", err)
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.opts.Endpoint, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// runConnectHooks 执行连接钩子；全部成功则进入 Joined。
// 钩子失败只记日志：加入协议是幂等的，下一次重连会再跑一遍。
func (c *Client) runConnectHooks() {
	c.mu.RLock()
	hooks := append([]func() error{}, c.connectHooks...)
	c.mu.RUnlock()

	ok := true
	for _, fn := range hooks {
		if err := fn(); err != nil {
			ok = false
			log.Error("连接钩子执行失败", err)
		}
	}
	if ok {
		c.setState(StateJoined)
	}
}

// readLoop 读取并分发事件，直到连接出错或 ctx 取消。
// 同一连接内事件按服务端发送顺序到达。
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			log.Warnf("无法解析 WebSocket 帧: %v, frame: %s", err, string(message))
			continue
		}
		c.dispatch(envelope)
	}
}

// dispatch 将事件交给注册的处理器。没有处理器的事件仅记 debug 日志。
func (c *Client) dispatch(envelope Envelope) {
	c.mu.RLock()
	handlers := append([]Handler{}, c.handlers[envelope.Event]...)
	c.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debugf("收到未注册处理器的事件: %s", envelope.Event)
		return
	}
	for _, h := range handlers {
		h(envelope.Data)
	}
}

// Close 无条件关闭当前连接。用于视图卸载路径，包括出错分支。
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

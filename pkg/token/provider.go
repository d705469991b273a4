package token

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Identity 描述当前登录身份，来源于 token 的声明。
type Identity struct {
	UserID  string
	Name    string
	Role    string
	College string
}

// IsCounselor 判断该身份是否需要加入按学院划分的辅导员房间。
func (i Identity) IsCounselor() bool {
	return i.Role == "counselor" || i.Role == "admin"
}

// Provider 是身份凭证的注入式来源。管线各处只通过该接口取 token，
// 不直接读取任何全局存储。
type Provider interface {
	// Token 返回当前的 Bearer token 原文。
	Token() (string, error)
	// Identity 返回从 token 中解析出的身份信息。
	Identity() (Identity, error)
	// OnChange 注册凭证变化（重新登录、token 刷新）时的回调。
	OnChange(fn func(Identity))
}

// FileProvider 从磁盘文件读取 token（由登录流程写入），
// 并用共享密钥验证后提取身份声明。
type FileProvider struct {
	path    string
	manager *JWTManager

	mu        sync.RWMutex
	cached    string
	identity  Identity
	callbacks []func(Identity)
}

// NewFileProvider 创建一个文件凭证提供者并立即加载一次。
func NewFileProvider(path string, manager *JWTManager) (*FileProvider, error) {
	p := &FileProvider{path: path, manager: manager}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Token 返回当前缓存的 token。
func (p *FileProvider) Token() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == "" {
		return "", fmt.Errorf("凭证文件 %s 中没有可用的 token", p.path)
	}
	return p.cached, nil
}

// Identity 返回当前身份。
func (p *FileProvider) Identity() (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.identity.UserID == "" {
		return Identity{}, fmt.Errorf("尚未加载身份信息")
	}
	return p.identity, nil
}

// OnChange 注册凭证变化回调。
func (p *FileProvider) OnChange(fn func(Identity)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

// Reload 重新读取凭证文件。token 变化时触发已注册的回调。
func (p *FileProvider) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("读取凭证文件失败: %w", err)
	}
	tokenString := strings.TrimSpace(string(raw))
	claims, err := p.manager.VerifyToken(tokenString)
	if err != nil {
		return fmt.Errorf("凭证文件中的 token 无效: %w", err)
	}

	identity := Identity{
		UserID:  claims.UserID,
		Name:    claims.Name,
		Role:    claims.Role,
		College: claims.College,
	}

	p.mu.Lock()
	changed := p.cached != "" && p.cached != tokenString
	p.cached = tokenString
	p.identity = identity
	callbacks := append([]func(Identity){}, p.callbacks...)
	p.mu.Unlock()

	if changed {
		for _, fn := range callbacks {
			fn(identity)
		}
	}
	return nil
}

// StaticProvider 持有固定的 token 与身份，用于测试和单次命令。
type StaticProvider struct {
	TokenValue string
	Ident      Identity
}

func (s *StaticProvider) Token() (string, error) { return s.TokenValue, nil }

func (s *StaticProvider) Identity() (Identity, error) { return s.Ident, nil }

func (s *StaticProvider) OnChange(fn func(Identity)) {}

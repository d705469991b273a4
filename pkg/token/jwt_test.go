package token

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestJWTManager_VerifyRoundTrip 验证签发与验证的往返一致。
func TestJWTManager_VerifyRoundTrip(t *testing.T) {
	m := NewJWTManager("secret-1")

	tok, err := m.GenerateToken("c-1", "王老师", "counselor", "工学院", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatalf("验证不应失败: %v", err)
	}
	if claims.UserID != "c-1" || claims.Role != "counselor" || claims.College != "工学院" {
		t.Errorf("claims 不完整: %+v", claims)
	}
}

// TestJWTManager_RejectsWrongSecret 验证错误密钥签发的 token 被拒绝。
func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	other := NewJWTManager("secret-other")
	tok, err := other.GenerateToken("c-1", "王老师", "counselor", "工学院", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	m := NewJWTManager("secret-1")
	if _, err := m.VerifyToken(tok); err == nil {
		t.Error("错误密钥签发的 token 应验证失败")
	}
}

// TestJWTManager_RejectsExpired 验证过期 token 被拒绝。
func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("secret-1")
	tok, err := m.GenerateToken("c-1", "王老师", "counselor", "工学院", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.VerifyToken(tok); err == nil {
		t.Error("过期 token 应验证失败")
	}
}

// TestFileProvider_LoadAndChangeCallback 验证文件凭证加载与变更回调。
func TestFileProvider_LoadAndChangeCallback(t *testing.T) {
	m := NewJWTManager("secret-1")
	dir := t.TempDir()
	path := filepath.Join(dir, "token")

	tok1, err := m.GenerateToken("c-1", "王老师", "counselor", "工学院", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(tok1+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(path, m)
	if err != nil {
		t.Fatalf("加载凭证不应失败: %v", err)
	}

	ident, err := p.Identity()
	if err != nil {
		t.Fatal(err)
	}
	if ident.UserID != "c-1" || !ident.IsCounselor() {
		t.Errorf("身份解析不完整: %+v", ident)
	}

	var changed []Identity
	p.OnChange(func(i Identity) { changed = append(changed, i) })

	// 登录流程写入新 token（换了身份），Reload 应触发回调
	tok2, err := m.GenerateToken("a-1", "李主任", "admin", "理学院", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(tok2), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err != nil {
		t.Fatal(err)
	}

	if len(changed) != 1 || changed[0].UserID != "a-1" {
		t.Errorf("变更回调未正确触发: %+v", changed)
	}

	got, err := p.Token()
	if err != nil {
		t.Fatal(err)
	}
	if got != tok2 {
		t.Error("Token 应返回最新凭证")
	}
}

// TestFileProvider_RejectsInvalidFile 验证损坏的凭证文件在启动时即报错。
func TestFileProvider_RejectsInvalidFile(t *testing.T) {
	m := NewJWTManager("secret-1")
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("not-a-jwt"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileProvider(path, m); err == nil {
		t.Error("无效凭证文件应在创建时报错")
	}
}

// Package config 负责加载和管理中继代理的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Refresh       RefreshConfig       `mapstructure:"refresh"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Journal       JournalConfig       `mapstructure:"journal"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig 存储本地 HTTP 服务的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// BackendConfig 存储 MindBridge 后端 REST 接口的配置。
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RealtimeConfig 存储上游 WebSocket 连接的配置。
type RealtimeConfig struct {
	Endpoint           string `mapstructure:"endpoint"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds"`
	ReconnectMinMillis int    `mapstructure:"reconnect_min_millis"`
	ReconnectMaxMillis int    `mapstructure:"reconnect_max_millis"`
}

// AuthConfig 存储身份凭证相关的配置。
type AuthConfig struct {
	// TokenFile 是后端签发的 Bearer token 在磁盘上的位置，
	// 由登录流程写入，代理只读。
	TokenFile string `mapstructure:"token_file"`
	Secret    string `mapstructure:"secret"`
}

// AlertsConfig 存储危机预警处理的配置。
type AlertsConfig struct {
	BufferCap int  `mapstructure:"buffer_cap"`
	Sound     bool `mapstructure:"sound"`
}

// NotificationsConfig 存储桌面通知权限的配置。
// Permission 的取值与浏览器 Notification.permission 对齐：default、granted、denied。
type NotificationsConfig struct {
	Permission string `mapstructure:"permission"`
	// AutoGrant 控制处于 default 状态时请求权限的结果。
	AutoGrant bool `mapstructure:"auto_grant"`
}

// RefreshConfig 存储仪表盘刷新的配置。
type RefreshConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// DedupConfig 存储重复事件抑制的配置。
type DedupConfig struct {
	WindowMillis int `mapstructure:"window_millis"`
}

// JournalConfig 存储预警审计日志的配置。DSN 为空时不启用。
type JournalConfig struct {
	MySQLDSN string `mapstructure:"mysql_dsn"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 关键项的默认值，配置文件缺少字段时保证管线仍可运行
	viper.SetDefault("realtime.dial_timeout_seconds", 20)
	viper.SetDefault("realtime.reconnect_min_millis", 1000)
	viper.SetDefault("realtime.reconnect_max_millis", 30000)
	viper.SetDefault("alerts.buffer_cap", 10)
	viper.SetDefault("refresh.interval_seconds", 30)
	viper.SetDefault("dedup.window_millis", 5000)
	viper.SetDefault("notifications.permission", "default")
	viper.SetDefault("backend.timeout_seconds", 15)

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// MarshalYAML 以 "30s" 形式输出，-dump-config 的结果可以被 Load 原样读回。
func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "0s", nil
	}
	return time.Duration(d).String(), nil
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述节点自身的运行参数。
type GlobalConfig struct {
	Host          string   `mapstructure:"host" yaml:"host"`
	ListenPort    int      `mapstructure:"listen_port" yaml:"listen_port"`
	Directory     string   `mapstructure:"directory" yaml:"directory"`
	Save          bool     `mapstructure:"save" yaml:"save"`
	DefaultTTL    Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	MaxUploadSize int      `mapstructure:"max_upload_size" yaml:"max_upload_size"`
	LogLevel      string   `mapstructure:"log_level" yaml:"log_level"`
	LogFilePath   string   `mapstructure:"log_file_path" yaml:"log_file_path"`
	LogMaxSize    int      `mapstructure:"log_max_size" yaml:"log_max_size"`
	LogMaxBackups int      `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	LogCompress   bool     `mapstructure:"log_compress" yaml:"log_compress"`
}

// PeerConfig 描述一个兄弟节点。Save 表示从该节点取回的内容是否允许在本地落盘，
// TTL 为 0 时回退到全局 default_ttl。
type PeerConfig struct {
	ID   string   `mapstructure:"id" yaml:"id"`
	Host string   `mapstructure:"host" yaml:"host"`
	Port int      `mapstructure:"port" yaml:"port"`
	Save bool     `mapstructure:"save" yaml:"save"`
	TTL  Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// Config 是配置文件映射的整体结构，Peers 的顺序即查询顺序。
type Config struct {
	Global GlobalConfig `mapstructure:",squash" yaml:",inline"`
	Peers  []PeerConfig `mapstructure:"peers" yaml:"peers"`
}

// Address 返回 host:port 形式的节点地址。
func (p PeerConfig) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ListenAddress 返回本节点监听地址。
func (g GlobalConfig) ListenAddress() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.ListenPort))
}

// PeerIDs 按配置顺序返回所有 peer id，供启动日志使用。
func PeerIDs(peers []PeerConfig) []string {
	if len(peers) == 0 {
		return nil
	}
	result := make([]string, len(peers))
	for i, peer := range peers {
		result[i] = peer.ID
	}
	return result
}

// EffectiveTTL 返回某个 peer 生效的缓存 TTL，未覆盖时回退至 default_ttl。
func (c *Config) EffectiveTTL(p PeerConfig) time.Duration {
	if p.TTL.DurationValue() > 0 {
		return p.TTL.DurationValue()
	}
	return c.Global.DefaultTTL.DurationValue()
}

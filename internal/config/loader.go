package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const defaultMaxUploadSize = 64 * 1024 * 1024

// Load 读取并解析配置文件（YAML/TOML/JSON 由扩展名决定），同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectUnorderedTopology(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Peers {
		applyPeerDefaults(&cfg.Peers[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(cfg.Global.Directory)
	if err != nil {
		return nil, fmt.Errorf("无法解析本地目录: %w", err)
	}
	cfg.Global.Directory = absDir

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("listen_port", 8080)
	v.SetDefault("directory", "./storage")
	v.SetDefault("save", false)
	v.SetDefault("default_ttl", "1h")
	v.SetDefault("max_upload_size", defaultMaxUploadSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file_path", "")
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("log_compress", true)
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.Host = strings.TrimSpace(g.Host)
	if g.ListenPort == 0 {
		g.ListenPort = 8080
	}
	if g.DefaultTTL.DurationValue() == 0 {
		g.DefaultTTL = Duration(time.Hour)
	}
	if g.MaxUploadSize == 0 {
		g.MaxUploadSize = defaultMaxUploadSize
	}
}

func applyPeerDefaults(p *PeerConfig) {
	p.ID = strings.TrimSpace(p.ID)
	p.Host = strings.ToLower(strings.TrimSpace(p.Host))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectUnorderedTopology 拒绝以映射形式声明的拓扑：映射在解码后会丢失声明顺序，
// 而 peer 的查询顺序决定最终应答。
func rejectUnorderedTopology(v *viper.Viper) error {
	if v.IsSet("other_nodes") {
		return newFieldError("other_nodes", "字段已弃用，请改用有序的 peers 列表")
	}

	raw := v.Get("peers")
	if raw == nil {
		return nil
	}
	switch raw.(type) {
	case []interface{}:
		return nil
	case map[string]interface{}:
		return newFieldError("peers", "必须是列表，映射无法保留查询顺序")
	default:
		return newFieldError("peers", fmt.Sprintf("不支持的类型 %T", raw))
	}
}

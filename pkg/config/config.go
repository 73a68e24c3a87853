package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:8000"
	DefaultProfile        = "standard"
	DefaultPollInterval   = 5 * time.Second
	MinPollInterval       = 1 * time.Second
	MaxPollInterval       = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// APIConfig 后端 API 配置
type APIConfig struct {
	BaseURL string            // 后端根地址
	Profile string            // 接口族: standard | monitor
	Timeout time.Duration     // 单次请求超时
	Headers map[string]string // 附加的静态请求头
}

// PollConfig 轮询配置
type PollConfig struct {
	Interval   time.Duration // 轮询间隔
	StaleAfter time.Duration // 切换视图时，超过该时长的快照视为过期并重新加载
}

// UIConfig 界面配置
type UIConfig struct {
	InitialView       string
	NotificationLimit int  // 保留的通知条数
	ConfirmActions    bool // 写操作是否需要二次确认
}

// ActionConfig 写操作限流
type ActionConfig struct {
	RatePerSec float64
	Burst      int
}

// MetricsConfig 指标暴露
type MetricsConfig struct {
	Listen string // 为空则不启动 /metrics
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config 应用配置
type Config struct {
	API     APIConfig
	Poll    PollConfig
	UI      UIConfig
	Actions ActionConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	API struct {
		BaseURL   string            `yaml:"base_url" json:"base_url"`
		Profile   string            `yaml:"profile" json:"profile"`
		TimeoutMs int               `yaml:"timeout_ms" json:"timeout_ms"`
		Headers   map[string]string `yaml:"headers" json:"headers"`
	} `yaml:"api" json:"api"`
	Poll struct {
		IntervalMs   int `yaml:"interval_ms" json:"interval_ms"`
		StaleAfterMs int `yaml:"stale_after_ms" json:"stale_after_ms"`
	} `yaml:"poll" json:"poll"`
	UI struct {
		InitialView       string `yaml:"initial_view" json:"initial_view"`
		NotificationLimit int    `yaml:"notification_limit" json:"notification_limit"`
		ConfirmActions    *bool  `yaml:"confirm_actions" json:"confirm_actions"`
	} `yaml:"ui" json:"ui"`
	Actions struct {
		RatePerSec float64 `yaml:"rate_per_sec" json:"rate_per_sec"`
		Burst      int     `yaml:"burst" json:"burst"`
	} `yaml:"actions" json:"actions"`
	Metrics struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"metrics" json:"metrics"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
		Compress   *bool  `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`
}

// LoadFromFile 从指定文件加载配置；filePath 为空时只使用环境变量和默认值
// 优先级：环境变量 > 配置文件 > 默认值
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if strings.TrimSpace(filePath) != "" {
		loaded, err := loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		cf = loaded
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("BOTDASH_BASE_URL", firstNonEmpty(cf.API.BaseURL, DefaultBaseURL)),
			Profile: strings.ToLower(getEnv("BOTDASH_PROFILE", firstNonEmpty(cf.API.Profile, DefaultProfile))),
			Timeout: millis(parseIntEnv("BOTDASH_TIMEOUT_MS", positiveOr(cf.API.TimeoutMs, int(DefaultRequestTimeout/time.Millisecond)))),
			Headers: cf.API.Headers,
		},
		Poll: PollConfig{
			Interval:   millis(parseIntEnv("BOTDASH_POLL_INTERVAL_MS", positiveOr(cf.Poll.IntervalMs, int(DefaultPollInterval/time.Millisecond)))),
			StaleAfter: millis(parseIntEnv("BOTDASH_STALE_AFTER_MS", positiveOr(cf.Poll.StaleAfterMs, 0))),
		},
		UI: UIConfig{
			InitialView:       strings.ToLower(getEnv("BOTDASH_INITIAL_VIEW", firstNonEmpty(cf.UI.InitialView, "overview"))),
			NotificationLimit: positiveOr(cf.UI.NotificationLimit, 20),
			ConfirmActions:    parseBoolEnv("BOTDASH_CONFIRM_ACTIONS", boolOr(cf.UI.ConfirmActions, true)),
		},
		Actions: ActionConfig{
			RatePerSec: parseFloatEnv("BOTDASH_ACTION_RATE", positiveFloatOr(cf.Actions.RatePerSec, 2)),
			Burst:      positiveOr(cf.Actions.Burst, 3),
		},
		Metrics: MetricsConfig{
			Listen: getEnv("BOTDASH_METRICS_LISTEN", cf.Metrics.Listen),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", firstNonEmpty(cf.Log.Level, "info")),
			File:       getEnv("LOG_FILE", firstNonEmpty(cf.Log.File, "logs/botdash.log")),
			MaxSizeMB:  positiveOr(cf.Log.MaxSizeMB, 50),
			MaxBackups: positiveOr(cf.Log.MaxBackups, 3),
			MaxAgeDays: positiveOr(cf.Log.MaxAgeDays, 7),
			Compress:   boolOr(cf.Log.Compress, true),
		},
	}

	// 默认过期窗口为两个轮询周期
	if cfg.Poll.StaleAfter <= 0 {
		cfg.Poll.StaleAfter = 2 * cfg.Poll.Interval
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url 不能为空")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url 必须以 http:// 或 https:// 开头: %s", c.API.BaseURL)
	}
	switch c.API.Profile {
	case "standard", "monitor":
	default:
		return fmt.Errorf("api.profile 无效: %s (支持 standard, monitor)", c.API.Profile)
	}
	if c.Poll.Interval < MinPollInterval || c.Poll.Interval > MaxPollInterval {
		return fmt.Errorf("poll.interval_ms 必须在 %d-%d 之间: %d",
			MinPollInterval.Milliseconds(), MaxPollInterval.Milliseconds(), c.Poll.Interval.Milliseconds())
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout_ms 必须大于 0")
	}
	if c.Actions.RatePerSec <= 0 || c.Actions.Burst <= 0 {
		return fmt.Errorf("actions.rate_per_sec 和 actions.burst 必须大于 0")
	}
	return nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return &configFile, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func positiveFloatOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Chat     ChatConfig     `mapstructure:"chat"`
	News     NewsConfig     `mapstructure:"news"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig 选择每设备键值状态的存储后端。
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // redis | sqlite | memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig 存储 Gemini 推理接口相关的配置。
type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RetryConfig 配置指数退避重试。
type RetryConfig struct {
	Retries    int `mapstructure:"retries"`
	DelayMS    int `mapstructure:"delay_ms"`
	MaxDelayMS int `mapstructure:"max_delay_ms"`
}

// Delay 返回首次退避时长。
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// MaxDelay 返回退避上限，0 表示不设上限。
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// ChatConfig 配置聊天会话。
type ChatConfig struct {
	MessageLimit  int     `mapstructure:"message_limit"`
	Temperature   float64 `mapstructure:"temperature"`
	Streaming     bool    `mapstructure:"streaming"`
	Persona       string  `mapstructure:"persona"`
	QuotaReset    string  `mapstructure:"quota_reset"` // never | daily
	ResetSchedule string  `mapstructure:"reset_schedule"`
}

// NewsConfig 配置资讯抽取。
type NewsConfig struct {
	Temperature      float64 `mapstructure:"temperature"`
	MaxItems         int     `mapstructure:"max_items"`
	MinSectionLength int     `mapstructure:"min_section_length"`
	TitleMaxLength   int     `mapstructure:"title_max_length"`
	SourceLabel      string  `mapstructure:"source_label"`
}

const (
	QuotaResetNever = "never"
	QuotaResetDaily = "daily"

	// MaxRetries 是 retry.retries 允许的最大值。
	MaxRetries = 10
)

// Init 初始化配置加载，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取 YAML 配置文件，叠加 .env 与环境变量后解析为 Config。
// configPath 为空时只使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("KKX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	// 兼容原站点的 API_KEY / GEMINI_API_KEY
	if cfg.LLM.APIKey == "" {
		for _, key := range []string{"GEMINI_API_KEY", "API_KEY"} {
			_ = v.BindEnv("legacy_"+key, key)
			if val := v.GetString("legacy_" + key); val != "" {
				cfg.LLM.APIKey = val
				break
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.sqlite_path", "./data/kkx.db")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.model", "gemini-3-flash-preview")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("retry.retries", 3)
	v.SetDefault("retry.delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 0)
	v.SetDefault("chat.message_limit", 10)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.streaming", true)
	v.SetDefault("chat.persona", DefaultPersona)
	v.SetDefault("chat.quota_reset", QuotaResetNever)
	v.SetDefault("chat.reset_schedule", "0 0 * * *")
	v.SetDefault("news.temperature", 0.2)
	v.SetDefault("news.max_items", 3)
	v.SetDefault("news.min_section_length", 30)
	v.SetDefault("news.title_max_length", 150)
	v.SetDefault("news.source_label", "University World News")
}

// DefaultPersona 是助手的系统指令模板，%s 位置填入当前显示语言。
const DefaultPersona = `You are an expert AI assistant for "Kaixiang's AI Toolkit" (康凯翔的 AI 实用工具箱), a collection of projects by researcher Kaixiang Kang.
Current language: %s. Keep responses concise, helpful, and professional.
Focus on how these specific tools (RefMatch, Japanese News Summarizer, Particle Distribution, Oogiri AI) serve educational and creative purposes.`

// Validate 检查配置取值是否合法。
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.driver must be redis, sqlite or memory, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path cannot be empty")
	}
	if c.Chat.MessageLimit <= 0 {
		return fmt.Errorf("chat.message_limit must be > 0")
	}
	switch c.Chat.QuotaReset {
	case QuotaResetNever, QuotaResetDaily:
	default:
		return fmt.Errorf("chat.quota_reset must be never or daily, got %q", c.Chat.QuotaReset)
	}
	if c.Retry.Retries < 0 || c.Retry.DelayMS < 0 || c.Retry.MaxDelayMS < 0 {
		return fmt.Errorf("retry values cannot be negative")
	}
	if c.Retry.Retries > MaxRetries {
		return fmt.Errorf("retry.retries must be <= %d, got %d", MaxRetries, c.Retry.Retries)
	}
	if c.News.MaxItems <= 0 || c.News.TitleMaxLength <= 0 {
		return fmt.Errorf("news.max_items and news.title_max_length must be > 0")
	}
	return nil
}

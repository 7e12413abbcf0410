package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AI        AIConfig
	Chat      ChatConfig      `mapstructure:"chat"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type AIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type ChatConfig struct {
	// 生成上下文最多带多少条历史消息；存储的历史永远不截断
	ContextWindow int `mapstructure:"context_window"`
	// 相邻两轮超过该间隔的部分不计入学习时长
	IdleTimeoutMinutes int    `mapstructure:"idle_timeout_minutes"`
	FallbackReply      string `mapstructure:"fallback_reply"`
	MaxMessageLen      int    `mapstructure:"max_message_len"`
}

type AnalyticsConfig struct {
	DefaultWindowDays int `mapstructure:"default_window_days"`
}

type ReminderConfig struct {
	ScanIntervalMinutes int `mapstructure:"scan_interval_minutes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("AI_TUTOR")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Chat.ContextWindow <= 0 {
		cfg.Chat.ContextWindow = 10
	}
	if cfg.Chat.IdleTimeoutMinutes <= 0 {
		cfg.Chat.IdleTimeoutMinutes = 30
	}
	if cfg.Chat.MaxMessageLen <= 0 {
		cfg.Chat.MaxMessageLen = 5000
	}
	if cfg.Chat.FallbackReply == "" {
		cfg.Chat.FallbackReply = "I'm having a bit of trouble right now, but I'm still here to help! Could you try asking that again?"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 1000
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.Analytics.DefaultWindowDays <= 0 {
		cfg.Analytics.DefaultWindowDays = 7
	}
	if cfg.Reminder.ScanIntervalMinutes <= 0 {
		cfg.Reminder.ScanIntervalMinutes = 60
	}
}

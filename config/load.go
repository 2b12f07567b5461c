package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"smmshop-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Logger  logger.Config `yaml:"logger"`
	Gateway GatewayConfig `yaml:"gateway"`
	Poll    PollConfig    `yaml:"poll"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GatewayConfig 订单状态接口的访问参数。
type GatewayConfig struct {
	BaseURL   string  `yaml:"baseURL"`
	APIToken  string  `yaml:"apiToken"`  // 可用 SMM_GATEWAY_API_TOKEN 覆盖
	TimeoutMs int     `yaml:"timeoutMs"` // 单次请求超时
	RateLimit float64 `yaml:"rateLimit"` // 每秒请求数，0 表示不限速
	RateBurst int     `yaml:"rateBurst"`
}

// PollConfig 轮询会话参数；零值回落到会话默认值。
type PollConfig struct {
	StartupDelayMs   int `yaml:"startupDelayMs"`   // 首查前延迟
	IntervalMs       int `yaml:"intervalMs"`       // 轮询间隔，约定范围 4000-5000
	MaxAttempts      int `yaml:"maxAttempts"`      // 轮询预算
	AuthRetryDelayMs int `yaml:"authRetryDelayMs"` // 401 重试等待
}

// ServerConfig 上游状态服务的监听参数。
type ServerConfig struct {
	Addr       string   `yaml:"addr"`
	AuthTokens []string `yaml:"authTokens"` // 合法 bearer token；空列表表示关闭鉴权
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭指标服务
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Logger.Level == "" {
		cfg.Logger = logger.DefaultConfig()
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("SMM_GATEWAY_API_TOKEN"); v != "" {
		cfg.Gateway.APIToken = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required")
	}
	if cfg.Gateway.TimeoutMs < 0 {
		return errors.New("gateway.timeoutMs must be >= 0")
	}
	if cfg.Gateway.RateLimit < 0 || cfg.Gateway.RateBurst < 0 {
		return errors.New("gateway rate limit params must be >= 0")
	}
	if cfg.Poll.MaxAttempts < 0 {
		return errors.New("poll.maxAttempts must be >= 0")
	}
	if cfg.Poll.IntervalMs != 0 && (cfg.Poll.IntervalMs < 4000 || cfg.Poll.IntervalMs > 5000) {
		return fmt.Errorf("poll.intervalMs %d out of range [4000,5000]", cfg.Poll.IntervalMs)
	}
	if cfg.Poll.StartupDelayMs < 0 || cfg.Poll.AuthRetryDelayMs < 0 {
		return errors.New("poll delays must be >= 0")
	}
	return nil
}

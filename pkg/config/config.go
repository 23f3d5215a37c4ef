package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide daemon configuration. It is loaded once during
// boot and treated as read-only afterwards.
type Config struct {
	DataDir string `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`
	LogJSON  bool   `yaml:"log_json"`

	GatewayAddr   string `yaml:"gateway_addr"`
	GatewaySecret string `yaml:"gateway_secret"`
	MetricsAddr   string `yaml:"metrics_addr"`

	// Model identifiers handed to role handlers.
	Model string `yaml:"model"`

	// Scheduler
	Workers           int           `yaml:"workers"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Healing
	HealthInterval   time.Duration `yaml:"health_interval"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	MemorySoftLimit  int64         `yaml:"memory_soft_limit"`

	// External endpoints probed by the dependency audit.
	Endpoints []string `yaml:"endpoints"`

	// Collaborator credentials. Opaque to the core; injected into tools.
	MessagingToken string `yaml:"messaging_token"`
	PaymentsKey    string `yaml:"payments_key"`
	BankingKey     string `yaml:"banking_key"`
	TradingKey     string `yaml:"trading_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:           "./aegis-data",
		LogLevel:          "info",
		GatewayAddr:       "127.0.0.1:8420",
		MetricsAddr:       "127.0.0.1:9420",
		Workers:           1,
		HeartbeatInterval: 10 * time.Second,
		HealthInterval:    30 * time.Second,
		BreakerThreshold:  5,
		BreakerCooldown:   5 * time.Minute,
		MemorySoftLimit:   512 << 20,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// AEGIS_CONFIG, and environment variables. Environment variables win.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("AEGIS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("AEGIS_DATA_DIR", &cfg.DataDir)
	envStr("AEGIS_LOG_LEVEL", &cfg.LogLevel)
	envStr("AEGIS_LOG_DIR", &cfg.LogDir)
	envBool("AEGIS_LOG_JSON", &cfg.LogJSON)
	envStr("AEGIS_GATEWAY_ADDR", &cfg.GatewayAddr)
	envStr("AEGIS_GATEWAY_SECRET", &cfg.GatewaySecret)
	envStr("AEGIS_METRICS_ADDR", &cfg.MetricsAddr)
	envStr("AEGIS_MODEL", &cfg.Model)
	envInt("AEGIS_WORKERS", &cfg.Workers)
	envDur("AEGIS_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval)
	envDur("AEGIS_HEALTH_INTERVAL", &cfg.HealthInterval)
	envInt("AEGIS_BREAKER_THRESHOLD", &cfg.BreakerThreshold)
	envDur("AEGIS_BREAKER_COOLDOWN", &cfg.BreakerCooldown)
	envInt64("AEGIS_MEMORY_SOFT_LIMIT", &cfg.MemorySoftLimit)
	envStr("AEGIS_MESSAGING_TOKEN", &cfg.MessagingToken)
	envStr("AEGIS_PAYMENTS_KEY", &cfg.PaymentsKey)
	envStr("AEGIS_BANKING_KEY", &cfg.BankingKey)
	envStr("AEGIS_TRADING_KEY", &cfg.TradingKey)

	if v := os.Getenv("AEGIS_ENDPOINTS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.Endpoints = urls
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envDur(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

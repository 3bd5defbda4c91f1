package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vault     VaultConfig     `mapstructure:"vault"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// 维护模式：只接受读取和取款
	ReadOnly bool `mapstructure:"read_only"`
}

type AuthConfig struct {
	// 默认开启; false 时仅凭 X-Arena-Identity 识别调用者, 只用于本地开发
	RequireSignature    bool   `mapstructure:"require_signature"`
	AdminKey            string `mapstructure:"admin_key"`
	MaxClockSkewSeconds int    `mapstructure:"max_clock_skew_seconds"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	TradeListKey          string `mapstructure:"trade_list_key"`
	TradeListMax          int    `mapstructure:"trade_list_max"`
	TradeChannel          string `mapstructure:"trade_channel"`
}

type VaultConfig struct {
	ProgramID  string `mapstructure:"program_id"`  // base58, namespace for derived addresses
	MinReserve uint64 `mapstructure:"min_reserve"` // 0 = rent-exempt minimum of the vault record
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AuditConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

type TracingConfig struct {
	Exporter     string `mapstructure:"exporter"` // none | stdout | otlp
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// Environment variables support
	// e.g. ARENA_DATABASE_DSN
	v.SetEnvPrefix("arena")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_only", false)
	v.SetDefault("auth.require_signature", true)
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.max_clock_skew_seconds", 300)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.audit_retention_days", 30)
	v.SetDefault("database.cleanup_interval_minutes", 60)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("redis.trade_list_key", "arena:trades")
	v.SetDefault("redis.trade_list_max", 10000)
	v.SetDefault("redis.trade_channel", "arena:trades:live")
	v.SetDefault("vault.program_id", "11111111111111111111111111111112")
	v.SetDefault("vault.min_reserve", 0)
	v.SetDefault("rate_limit.qps", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("audit.log_dir", "./logs")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.otlp_insecure", true)
}

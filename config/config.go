package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Abuse mitigation
	Abuse AbuseConfig `mapstructure:"abuse"`

	// Click accounting
	Clicks ClicksConfig `mapstructure:"clicks"`

	// Request throttling
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ProxyHeader     string        `mapstructure:"proxy_header"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AbuseConfig holds the spam classification and escalation rules.
type AbuseConfig struct {
	BlockedDomains         []string `mapstructure:"blocked_domains"`
	SuspiciousKeywords     []string `mapstructure:"suspicious_keywords"`
	MaxLinksPerDay         int      `mapstructure:"max_links_per_day"`
	RapidCreationThreshold int      `mapstructure:"rapid_creation_threshold"`
	SpamEventThreshold     int      `mapstructure:"spam_event_threshold"`
	BlockDurationDays      int      `mapstructure:"block_duration_days"`
	// DedupPolicy is one of "none", "per_ip" or "global".
	DedupPolicy string `mapstructure:"dedup_policy"`
}

type ClicksConfig struct {
	Async          bool          `mapstructure:"async"`
	HistoryDays    int           `mapstructure:"history_days"`
	SamplesPerDay  int           `mapstructure:"samples_per_day"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	BlockRetention time.Duration `mapstructure:"block_retention"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Abuse.BlockedDomains = splitList(cfg.Abuse.BlockedDomains)
	cfg.Abuse.SuspiciousKeywords = splitList(cfg.Abuse.SuspiciousKeywords)
	cfg.Abuse.DedupPolicy = strings.ToLower(strings.TrimSpace(cfg.Abuse.DedupPolicy))
	if cfg.Abuse.DedupPolicy == "" {
		cfg.Abuse.DedupPolicy = "none"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Abuse.DedupPolicy {
	case "none", "per_ip", "global":
	default:
		return fmt.Errorf("config: abuse.dedup_policy must be one of none, per_ip, global (got %q)", c.Abuse.DedupPolicy)
	}
	if c.Abuse.MaxLinksPerDay <= 0 {
		return fmt.Errorf("config: abuse.max_links_per_day must be positive")
	}
	if c.Abuse.RapidCreationThreshold <= 0 {
		return fmt.Errorf("config: abuse.rapid_creation_threshold must be positive")
	}
	if c.Abuse.SpamEventThreshold <= 0 {
		return fmt.Errorf("config: abuse.spam_event_threshold must be positive")
	}
	if c.Abuse.BlockDurationDays <= 0 {
		return fmt.Errorf("config: abuse.block_duration_days must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.proxy_header", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("abuse.blocked_domains", []string{})
	v.SetDefault("abuse.suspicious_keywords", []string{})
	v.SetDefault("abuse.max_links_per_day", 50)
	v.SetDefault("abuse.rapid_creation_threshold", 10)
	v.SetDefault("abuse.spam_event_threshold", 5)
	v.SetDefault("abuse.block_duration_days", 7)
	v.SetDefault("abuse.dedup_policy", "none")

	v.SetDefault("clicks.async", false)
	v.SetDefault("clicks.history_days", 30)
	v.SetDefault("clicks.samples_per_day", 20)
	v.SetDefault("clicks.sweep_interval", time.Duration(0))
	v.SetDefault("clicks.block_retention", 30*24*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.base_url", "BASE_URL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Abuse mitigation
	v.BindEnv("abuse.blocked_domains", "BLOCKED_DOMAINS")
	v.BindEnv("abuse.suspicious_keywords", "SUSPICIOUS_KEYWORDS")
	v.BindEnv("abuse.max_links_per_day", "MAX_LINKS_PER_IP_PER_DAY")
	v.BindEnv("abuse.rapid_creation_threshold", "RAPID_CREATION_THRESHOLD")
	v.BindEnv("abuse.spam_event_threshold", "SPAM_EVENT_THRESHOLD")
	v.BindEnv("abuse.block_duration_days", "BLOCK_DURATION_DAYS")
	v.BindEnv("abuse.dedup_policy", "DEDUP_POLICY")
}

// splitList flattens comma separated entries coming from env vars and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

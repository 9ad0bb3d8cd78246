// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	NPM             NPMConfig             `mapstructure:"npm"`
	RepositoryHosts RepositoryHostsConfig `mapstructure:"repository_hosts"`
	AI              AIConfig              `mapstructure:"ai"`
	Refresh         RefreshConfig         `mapstructure:"refresh"`
	Scheduler       SchedulerConfig       `mapstructure:"scheduler"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Notifications   NotificationsConfig   `mapstructure:"notifications"`
	Logging         LoggingConfig         `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrateOnStart  bool   `mapstructure:"migrate_on_start"`
}

// DSN returns the key/value connection string used by gorm.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the postgres:// URL used by golang-migrate.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis connection settings. Redis backs the refresh run lock.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NPMConfig points at the npm registry and downloads API.
type NPMConfig struct {
	RegistryURL  string        `mapstructure:"registry_url"`
	DownloadsURL string        `mapstructure:"downloads_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RepositoryHostsConfig contains credentials for reading repository contents.
type RepositoryHostsConfig struct {
	GitHub       GitHubConfig `mapstructure:"github"`
	GitLab       GitLabConfig `mapstructure:"gitlab"`
	MaxFiles     int          `mapstructure:"max_files"`
	MaxFileBytes int          `mapstructure:"max_file_bytes"`
}

// GitHubConfig contains GitHub API settings. Token is optional; anonymous access is rate limited.
type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// GitLabConfig contains GitLab API settings.
type GitLabConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig contains defaults for AI reviews. Keys are used only when a request does not
// carry its own.
type AIConfig struct {
	DefaultProvider string           `mapstructure:"default_provider"`
	Timeout         time.Duration    `mapstructure:"timeout"`
	ClaimTimeout    time.Duration    `mapstructure:"claim_timeout"`
	MaxTokens       int              `mapstructure:"max_tokens"`
	Anthropic       AIProviderConfig `mapstructure:"anthropic"`
	OpenAI          AIProviderConfig `mapstructure:"openai"`
	Gemini          AIProviderConfig `mapstructure:"gemini"`
}

// AIProviderConfig holds per-provider credentials and the default model.
type AIProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// RefreshConfig tunes refresh runs.
type RefreshConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	OrphanAfter time.Duration `mapstructure:"orphan_after"`
}

// SchedulerConfig contains the cron schedules for background jobs.
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	RefreshTime     string `mapstructure:"refresh_time"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	Timezone        string `mapstructure:"timezone"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotificationsConfig contains Mattermost webhook notification settings.
type NotificationsConfig struct {
	Mattermost MattermostConfig `mapstructure:"mattermost"`
}

// MattermostConfig contains Mattermost webhook settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.postgres.migrate_on_start", true)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("npm.registry_url", "https://registry.npmjs.org")
	v.SetDefault("npm.downloads_url", "https://api.npmjs.org")
	v.SetDefault("npm.timeout", 15*time.Second)

	v.SetDefault("repository_hosts.github.base_url", "https://api.github.com/")
	v.SetDefault("repository_hosts.gitlab.base_url", "https://gitlab.com")
	v.SetDefault("repository_hosts.max_files", 20)
	v.SetDefault("repository_hosts.max_file_bytes", 40000)

	v.SetDefault("ai.default_provider", "anthropic")
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.claim_timeout", 30*time.Minute)
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("ai.openai.model", "gpt-4o")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")

	v.SetDefault("refresh.concurrency", 1)
	v.SetDefault("refresh.lock_ttl", 2*time.Hour)
	v.SetDefault("refresh.orphan_after", 24*time.Hour)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.refresh_time", "03:00")
	v.SetDefault("scheduler.cleanup_schedule", "0 4 * * 0")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/component-directory/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.migrate_on_start", "POSTGRES_MIGRATE_ON_START")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// External data sources
	_ = v.BindEnv("npm.registry_url", "NPM_REGISTRY_URL")
	_ = v.BindEnv("npm.downloads_url", "NPM_DOWNLOADS_URL")
	_ = v.BindEnv("repository_hosts.github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("repository_hosts.gitlab.token", "GITLAB_TOKEN")
	_ = v.BindEnv("repository_hosts.gitlab.base_url", "GITLAB_URL")

	// AI providers
	_ = v.BindEnv("ai.default_provider", "AI_DEFAULT_PROVIDER")
	_ = v.BindEnv("ai.anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ai.anthropic.model", "ANTHROPIC_MODEL")
	_ = v.BindEnv("ai.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("ai.openai.model", "OPENAI_MODEL")
	_ = v.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("ai.gemini.model", "GEMINI_MODEL")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.refresh_time", "SCHEDULER_REFRESH_TIME")
	_ = v.BindEnv("scheduler.cleanup_schedule", "SCHEDULER_CLEANUP_SCHEDULE")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	// Notifications
	_ = v.BindEnv("notifications.mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("notifications.mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("notifications.mattermost.enabled", "MATTERMOST_ENABLED")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if c.NPM.RegistryURL == "" {
		return fmt.Errorf("npm.registry_url is required")
	}
	switch c.AI.DefaultProvider {
	case "anthropic", "openai", "gemini":
	default:
		return fmt.Errorf("ai.default_provider must be one of anthropic, openai, gemini (got %q)", c.AI.DefaultProvider)
	}
	if c.AI.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("ai.max_tokens must not exceed %d", math.MaxInt32)
	}
	if c.Refresh.Concurrency < 1 {
		return fmt.Errorf("refresh.concurrency must be at least 1")
	}
	if c.Notifications.Mattermost.Enabled && c.Notifications.Mattermost.WebhookURL == "" {
		return fmt.Errorf("notifications.mattermost.webhook_url is required when notifications are enabled")
	}
	return nil
}

// GetLocation returns the scheduler timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Provider returns the configuration block for a provider name, or nil.
func (c *AIConfig) Provider(name string) *AIProviderConfig {
	switch name {
	case "anthropic":
		return &c.Anthropic
	case "openai":
		return &c.OpenAI
	case "gemini":
		return &c.Gemini
	}
	return nil
}

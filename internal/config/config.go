package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/email-triage/")
	v.AddConfigPath("$HOME/.email-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("EMAIL_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// ML provider defaults
	v.SetDefault("ml.provider", "modelservice")
	v.SetDefault("ml.labels", []string{})

	// Phase 1 defaults
	v.SetDefault("phase1.confidence_threshold", 0.75)
	v.SetDefault("phase1.fallback_category", "Other")
	v.SetDefault("phase1.default_confidence", 0.30)
	v.SetDefault("phase1.sender_confidence", 0.98)
	v.SetDefault("phase1.sender_domain_confidence", 0.95)
	v.SetDefault("phase1.sender_name_confidence", 0.90)
	v.SetDefault("phase1.keyword_confidence", 0.75)

	// Phase 2 defaults
	v.SetDefault("phase2.enabled", true)
	v.SetDefault("phase2.delay", "5s")
	v.SetDefault("phase2.batch_size", 20)
	v.SetDefault("phase2.concurrency", 5)
	v.SetDefault("phase2.acceptance_threshold", 0.70)
	v.SetDefault("phase2.confidence_improvement_threshold", 0.15)
	v.SetDefault("phase2.max_retries", 3)
	v.SetDefault("phase2.batch_delay", "100ms")
	v.SetDefault("phase2.poll_interval", "1s")
	v.SetDefault("phase2.retry_backoff", "5s")
	v.SetDefault("phase2.call_timeout", "30s")

	// Category cache defaults
	v.SetDefault("categories.cache_ttl", "5m")
	v.SetDefault("categories.cleanup_frequency", "1m")

	// Model service defaults
	v.SetDefault("modelservice.base_url", "http://localhost:5000")
	v.SetDefault("modelservice.model_name", "distilbert-email-categorizer")
	v.SetDefault("modelservice.timeout", "30s")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite_path", "/data/email_triage.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/email_triage?parseTime=true")

	// Notifier defaults
	v.SetDefault("notify.type", "log")
	v.SetDefault("notify.redis_addr", "localhost:6379")
	v.SetDefault("notify.redis_password", "")
	v.SetDefault("notify.redis_db", 0)
	v.SetDefault("notify.channel_prefix", "triage")

	// Analytics cache defaults
	v.SetDefault("analytics.type", "noop")
	v.SetDefault("analytics.redis_addr", "localhost:6379")
	v.SetDefault("analytics.redis_password", "")
	v.SetDefault("analytics.redis_db", 0)
	v.SetDefault("analytics.key_prefix", "analytics")

	// Ingest defaults
	v.SetDefault("ingest.type", "smtp")
	v.SetDefault("ingest.listen_address", "0.0.0.0:10025")
	v.SetDefault("ingest.domain", "localhost")
	v.SetDefault("ingest.max_message_bytes", 30*1024*1024)
	v.SetDefault("ingest.max_recipients", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Reddit    RedditConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	ETL       ETLConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	Subreddit string
	Username  string
	ClientID  string
	Secret    string
	Timeout   int // seconds, per request
}

// OpenAIConfig holds AI capability configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Embeddings     bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ETLConfig holds pipeline configuration
type ETLConfig struct {
	PostLimit int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("TANKWATCH")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.tankwatch")
	viper.AddConfigPath("/etc/tankwatch")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: getString("database_url", ""),
		},
		Reddit: RedditConfig{
			Subreddit: getString("subreddit", "WorldofTanks"),
			Username:  getString("reddit_username", ""),
			ClientID:  getString("reddit_client_id", ""),
			Secret:    getString("reddit_secret", ""),
			Timeout:   getInt("reddit_timeout", 10),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getString("openai_api_key", ""),
			BaseURL:        getString("openai_base_url", "https://api.openai.com/v1"),
			Model:          getString("openai_model", "gpt-4o-mini"),
			EmbeddingModel: getString("openai_embedding_model", "text-embedding-3-small"),
			Embeddings:     getBool("openai_embeddings", true),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
		},
		ETL: ETLConfig{
			PostLimit: getInt("post_limit", 150),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", false),
			ServiceName:       getString("service_name", "tankwatch"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("subreddit", "WorldofTanks")
	viper.SetDefault("reddit_timeout", 10)
	viper.SetDefault("openai_base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai_model", "gpt-4o-mini")
	viper.SetDefault("openai_embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai_embeddings", true)
	viper.SetDefault("post_limit", 150)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("telemetry_enabled", false)
	viper.SetDefault("service_name", "tankwatch")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("TANKWATCH_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("TANKWATCH_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("TANKWATCH_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	result := ""
	for _, r := range key {
		if r == '-' || r == '_' {
			result += "_"
		} else if r >= 'a' && r <= 'z' {
			result += string(r - 'a' + 'A')
		} else {
			result += string(r)
		}
	}
	return result
}

// UserAgent builds the Reddit User-Agent string for this installation
func (c *RedditConfig) UserAgent() string {
	return fmt.Sprintf("script:%s:1.0 (by /u/%s)", c.Subreddit, c.Username)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.Reddit.Subreddit == "" {
		return fmt.Errorf("subreddit is required")
	}
	if c.Reddit.ClientID == "" || c.Reddit.Secret == "" {
		return fmt.Errorf("reddit_client_id and reddit_secret are required")
	}
	if c.Reddit.Timeout <= 0 || c.Reddit.Timeout > 300 {
		return fmt.Errorf("reddit_timeout must be between 1 and 300 seconds")
	}
	if c.ETL.PostLimit <= 0 || c.ETL.PostLimit > 1000 {
		return fmt.Errorf("post_limit must be between 1 and 1000")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai_api_key is required")
	}
	return nil
}

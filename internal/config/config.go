package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Categorizer CategorizerConfig `mapstructure:"categorizer"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// LogConfig controls the logrus level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CategorizerConfig holds data locations and shortlisting limits
type CategorizerConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	MarketplacesFile string `mapstructure:"marketplaces_file"`
	PromptFile       string `mapstructure:"prompt_file"`
	ShortlistMax     int    `mapstructure:"shortlist_max"`
	MaxNameChars     int    `mapstructure:"max_name_chars"`
	MaxDescChars     int    `mapstructure:"max_desc_chars"`
	Preload          bool   `mapstructure:"preload"`
	MaxParallel      int    `mapstructure:"max_parallel"`
}

// LLMConfig selects and configures the category oracle provider
type LLMConfig struct {
	Provider             string         `mapstructure:"provider"`
	Timeout              int            `mapstructure:"timeout"`
	MaxRequestsPerSecond int            `mapstructure:"max_requests_per_second"`
	Proxies              []string       `mapstructure:"proxies"`
	OpenAI               ProviderConfig `mapstructure:"openai"`
	Anthropic            ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds one provider's credentials and sampling settings.
// TopP is optional; nil leaves it to the provider.
type ProviderConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Model       string   `mapstructure:"model"`
	Temperature float64  `mapstructure:"temperature"`
	TopP        *float64 `mapstructure:"top_p"`
	MaxTokens   int      `mapstructure:"max_tokens"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
	JobTTL        int    `mapstructure:"job_ttl"`
	Workers       int    `mapstructure:"workers"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// Load loads configuration from a YAML file with environment variable
// overrides. An empty path searches for config.yaml in the working directory;
// running without any config file falls back to defaults and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindWellKnownEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn("config.yaml not found in current directory, using defaults and environment")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.resolvePaths()

	return &config, nil
}

// resolvePaths places the registry and prompt files under the data directory
// unless they were configured explicitly.
func (c *Config) resolvePaths() {
	if c.Categorizer.MarketplacesFile == "" {
		c.Categorizer.MarketplacesFile = filepath.Join(c.Categorizer.DataDir, "marketplaces.json")
	}
	if c.Categorizer.PromptFile == "" {
		c.Categorizer.PromptFile = filepath.Join(c.Categorizer.DataDir, "prompts", "category_prompt.md")
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

// ConfigureLogging applies the log section to the global logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", c.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// bindWellKnownEnv keeps the variable names operators already use for
// provider credentials.
func bindWellKnownEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"llm.provider":          "MODEL_PROVIDER",
		"llm.openai.api_key":    "OPENAI_API_KEY",
		"llm.openai.model":      "OPENAI_MODEL",
		"llm.anthropic.api_key": "ANTHROPIC_API_KEY",
		"llm.anthropic.model":   "ANTHROPIC_MODEL",
		"categorizer.data_dir":  "DATA_DIR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("categorizer.data_dir", "./data")
	v.SetDefault("categorizer.shortlist_max", 300)
	v.SetDefault("categorizer.max_name_chars", 300)
	v.SetDefault("categorizer.max_desc_chars", 2000)
	v.SetDefault("categorizer.preload", true)
	v.SetDefault("categorizer.max_parallel", 4)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", 60)
	v.SetDefault("llm.max_requests_per_second", 5)
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.temperature", 0.0)
	v.SetDefault("llm.openai.top_p", 0.0)
	v.SetDefault("llm.openai.max_tokens", 200)
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-latest")
	v.SetDefault("llm.anthropic.temperature", 0.0)
	v.SetDefault("llm.anthropic.max_tokens", 300)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "categorizer")
	v.SetDefault("database.user", "categorizer_user")
	v.SetDefault("database.password", "categorizer_pass")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "categorizer_consumer")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.job_ttl", 86400)
	v.SetDefault("redis.workers", 4)
	v.SetDefault("redis.max_retries", 3)
}

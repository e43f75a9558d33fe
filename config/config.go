package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the search service
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Search       SearchConfig       `mapstructure:"search"`
	Images       ImagesConfig       `mapstructure:"images"`
	Sessions     SessionsConfig     `mapstructure:"sessions"`
	Placeholders PlaceholdersConfig `mapstructure:"placeholders"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Env       string `mapstructure:"env"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	CompletionModel string  `mapstructure:"completion_model"`
	SuggestionModel string  `mapstructure:"suggestion_model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if strings.TrimSpace(l.CompletionModel) == "" {
		return fmt.Errorf("llm.completion_model required")
	}
	return nil
}

// SearchConfig contains web search provider settings
type SearchConfig struct {
	Timeout   time.Duration                   `mapstructure:"timeout"`
	Priority  []string                        `mapstructure:"priority"`
	Providers map[string]SearchProviderConfig `mapstructure:"providers"`
}

// SearchProviderConfig holds the credentials of one provider. A provider
// without credentials is skipped at startup.
type SearchProviderConfig struct {
	APIKey     string `mapstructure:"api_key"`
	CX         string `mapstructure:"cx"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// ImagesConfig tunes the image resolution chain.
type ImagesConfig struct {
	PageTimeout  time.Duration `mapstructure:"page_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
	FaviconURL   string        `mapstructure:"favicon_url"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

func (i ImagesConfig) Validate() error {
	if i.Concurrency <= 0 {
		return fmt.Errorf("images.concurrency must be > 0")
	}
	if !strings.Contains(i.FaviconURL, "%s") {
		return fmt.Errorf("images.favicon_url must contain a %%s placeholder for the hostname")
	}
	return nil
}

// Session capacity policies.
const (
	OnFullRollover = "rollover"
	OnFullReject   = "reject"
)

// SessionsConfig holds the session capacity and retention policy.
type SessionsConfig struct {
	MaxSearches   int           `mapstructure:"max_searches"`
	OnFull        string        `mapstructure:"on_full"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	RetentionDays int           `mapstructure:"retention_days"`
	RetentionCron string        `mapstructure:"retention_cron"`
}

func (s SessionsConfig) Validate() error {
	if s.MaxSearches <= 0 {
		return fmt.Errorf("sessions.max_searches must be > 0")
	}
	switch s.OnFull {
	case OnFullRollover, OnFullReject:
	default:
		return fmt.Errorf("sessions.on_full must be %q or %q", OnFullRollover, OnFullReject)
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("sessions.retention_days cannot be negative")
	}
	return nil
}

// PlaceholdersConfig controls the cached placeholder suggestions.
type PlaceholdersConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings. Redis is optional: without
// a host the image cache and session lock are disabled.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":10001")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("general.env", "dev")
	v.SetDefault("llm.completion_model", "gpt-4o-mini")
	v.SetDefault("llm.suggestion_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("search.timeout", 2*time.Second)
	v.SetDefault("search.priority", []string{"google", "bing", "serper", "brave"})
	v.SetDefault("images.page_timeout", time.Second)
	v.SetDefault("images.probe_timeout", time.Second)
	v.SetDefault("images.concurrency", 8)
	v.SetDefault("images.favicon_url", "https://www.google.com/s2/favicons?sz=256&domain=%s")
	v.SetDefault("images.cache_ttl", 24*time.Hour)
	v.SetDefault("sessions.max_searches", 15)
	v.SetDefault("sessions.on_full", OnFullRollover)
	v.SetDefault("sessions.lock_ttl", 10*time.Second)
	v.SetDefault("sessions.retention_cron", "@daily")
	v.SetDefault("placeholders.ttl", time.Hour)
	v.SetDefault("storage.redis.timeout", 2*time.Second)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("telemetry.service_name", "searchbrief")

	// Provider keys are bound explicitly so env-only deployments can enable
	// providers that never appear in a config file.
	for _, name := range []string{"google", "bing", "serper", "brave"} {
		for _, field := range []string{"api_key", "cx", "endpoint", "max_results"} {
			_ = v.BindEnv("search.providers." + name + "." + field)
		}
	}
	for _, key := range []string{"llm.api_key", "llm.base_url", "general.jwt_secret", "storage.postgres.url", "storage.redis.host", "storage.redis.port", "storage.redis.password"} {
		_ = v.BindEnv(key)
	}
}

// LoadConfig reads configuration from path (or the default search paths),
// a local .env file and SEARCHBRIEF_* environment variables.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SEARCHBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section that has hard requirements.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.Images.Validate,
		c.Sessions.Validate,
		c.Storage.Redis.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

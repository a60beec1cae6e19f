package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the loader reads,
// e.g. CONCRAWL_CRAWL_VENDOR_CONCURRENCY for crawl.vendor_concurrency.
const EnvPrefix = "CONCRAWL"

// SetDefaults registers default values for every key on v. Every key needs a
// default so that viper's AutomaticEnv binding applies during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.status_addr", "")

	v.SetDefault("database.url", "")

	v.SetDefault("crawl.event_api_url", "")
	v.SetDefault("crawl.vendor_form_url", "")
	v.SetDefault("crawl.page_size", 50)
	v.SetDefault("crawl.vendor_concurrency", 4)
	v.SetDefault("crawl.timeline_limit", 20)
	v.SetDefault("crawl.retries", 2)
	v.SetDefault("crawl.backoff", "exponential")
	v.SetDefault("crawl.retry_delay", 500*time.Millisecond)
	v.SetDefault("crawl.request_timeout", 30*time.Second)

	v.SetDefault("timeline.base_url", "")
	v.SetDefault("timeline.token", "")
	v.SetDefault("timeline.requests_per_second", 1.0)
	v.SetDefault("timeline.burst", 1)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// When configFile is empty, concrawl.yaml is looked up in the working directory
// and silently skipped if absent.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDatabase reads only the database section, so that tooling such as
// migrations works without the crawl sources configured.
func LoadDatabase(configFile string) (*DatabaseConfig, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	// UnmarshalKey would miss environment overrides of nested keys.
	cfg := DatabaseConfig{URL: v.GetString("database.url")}
	if cfg.URL == "" {
		return nil, errors.New("config validation failed: database.url is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("concrawl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

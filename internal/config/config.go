package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Crawl    CrawlConfig    `mapstructure:"crawl" validate:"required"`
	Timeline TimelineConfig `mapstructure:"timeline" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// StatusAddr is the listen address of the status API; empty disables it.
	StatusAddr string `mapstructure:"status_addr" validate:"omitempty,hostname_port"`
}

// DatabaseConfig contains checkpoint database settings.
// When URL is empty, checkpoints are kept in memory for the run only.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// CrawlConfig contains the pipeline's sources and fault-tolerance policy.
type CrawlConfig struct {
	EventAPIURL   string `mapstructure:"event_api_url" validate:"required,url"`
	VendorFormURL string `mapstructure:"vendor_form_url" validate:"required,url"`
	PageSize      int    `mapstructure:"page_size" validate:"gt=0,lte=500"`

	// VendorConcurrency bounds how many per-vendor crawl trees run at once.
	VendorConcurrency int `mapstructure:"vendor_concurrency" validate:"gte=1"`

	// TimelineLimit is the maximum number of posts read per vendor.
	TimelineLimit int `mapstructure:"timeline_limit" validate:"gte=0"`

	Retries    int           `mapstructure:"retries" validate:"gte=0"`
	Backoff    string        `mapstructure:"backoff" validate:"required,oneof=fixed exponential"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gte=0"`

	// RequestTimeout bounds a single HTTP request to any source.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// TimelineConfig contains the social timeline client and its rate gate.
// An empty BaseURL disables timeline crawling.
type TimelineConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	Token             string  `mapstructure:"token"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=1"`
}

// LLMConfig contains the image classification settings.
// An empty GeminiAPIKey disables classification.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required_with=GeminiAPIKey"`
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Security   SecurityConfig   `yaml:"security" mapstructure:"security"`
	Callback   CallbackConfig   `yaml:"callback" mapstructure:"callback"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Quota      QuotaConfig      `yaml:"quota" mapstructure:"quota"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Reference  ReferenceConfig  `yaml:"reference" mapstructure:"reference"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// SecurityConfig holds the shared HMAC secret and the replay window.
type SecurityConfig struct {
	Secret           string `yaml:"secret" mapstructure:"secret"`
	ReplayWindowSecs int    `yaml:"replay_window_secs" mapstructure:"replay_window_secs"`
}

// ReplayWindow returns the maximum tolerated clock skew.
func (c SecurityConfig) ReplayWindow() time.Duration {
	return time.Duration(c.ReplayWindowSecs) * time.Second
}

// CallbackConfig controls where webhook results may be delivered.
type CallbackConfig struct {
	DefaultURL   string   `yaml:"default_url" mapstructure:"default_url"`
	AllowedHosts []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts"`
}

// WebhookConfig configures outbound result delivery.
type WebhookConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-delivery HTTP timeout.
func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// QuotaConfig configures the per-owner daily request limit.
type QuotaConfig struct {
	DailyLimit int    `yaml:"daily_limit" mapstructure:"daily_limit"`
	Driver     string `yaml:"driver" mapstructure:"driver"`
	DSN        string `yaml:"dsn" mapstructure:"dsn"`
}

// ExtractionConfig selects the structured-extraction provider.
type ExtractionConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ReferenceConfig configures nutrient reference lookups.
type ReferenceConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	FoodDataKey       string  `yaml:"fooddata_key" mapstructure:"fooddata_key"`
	FoodDataBaseURL   string  `yaml:"fooddata_base_url" mapstructure:"fooddata_base_url"`
	CatalogPath       string  `yaml:"catalog_path" mapstructure:"catalog_path"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheSize         int     `yaml:"cache_size" mapstructure:"cache_size"`
	LookupConcurrency int     `yaml:"lookup_concurrency" mapstructure:"lookup_concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("security.secret", "")
	v.SetDefault("security.replay_window_secs", 300)
	v.SetDefault("callback.default_url", "")
	v.SetDefault("callback.allowed_hosts", []string{})
	v.SetDefault("webhook.timeout_secs", 15)
	v.SetDefault("quota.daily_limit", 100)
	v.SetDefault("quota.driver", "memory")
	v.SetDefault("quota.dsn", "")
	v.SetDefault("extraction.provider", "anthropic")
	v.SetDefault("extraction.breaker_threshold", 5)
	v.SetDefault("extraction.breaker_reset_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("reference.provider", "fooddata")
	v.SetDefault("reference.fooddata_key", "")
	v.SetDefault("reference.fooddata_base_url", "https://api.nal.usda.gov/fdc/v1")
	v.SetDefault("reference.catalog_path", "")
	v.SetDefault("reference.rate_per_sec", 5.0)
	v.SetDefault("reference.cache_size", 512)
	v.SetDefault("reference.lookup_concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys required by the named mode are present and
// that numeric settings are in range.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Security.Secret == "" {
			errs = append(errs, "security.secret is required")
		}
		if c.Security.ReplayWindowSecs <= 0 {
			errs = append(errs, "security.replay_window_secs must be > 0")
		}
		if c.Quota.DailyLimit < 0 {
			errs = append(errs, "quota.daily_limit must be >= 0")
		}
		switch c.Extraction.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("extraction.provider %q is not supported", c.Extraction.Provider))
		}
		switch c.Reference.Provider {
		case "fooddata":
			if c.Reference.FoodDataKey == "" {
				errs = append(errs, "reference.fooddata_key is required")
			}
		case "catalog":
			if c.Reference.CatalogPath == "" {
				errs = append(errs, "reference.catalog_path is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("reference.provider %q is not supported", c.Reference.Provider))
		}
		switch c.Quota.Driver {
		case "memory":
		case "sqlite", "postgres":
			if c.Quota.DSN == "" {
				errs = append(errs, "quota.dsn is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("quota.driver %q is not supported", c.Quota.Driver))
		}
	case "sign":
		if c.Security.Secret == "" {
			errs = append(errs, "security.secret is required")
		}
	case "schema":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Sternrassler/drata-client/pkg/client"
	"github.com/Sternrassler/drata-client/pkg/logging"
	"github.com/Sternrassler/drata-client/pkg/node"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "DRATA"

// Config holds the CLI configuration.
type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Burst      int           `mapstructure:"burst"`

	// MaxResetWait delays requests while the rate limit window is spent. 0 disables it.
	MaxResetWait time.Duration `mapstructure:"max_reset_wait"`

	// RedisURL selects the Redis watermark store. Empty keeps watermarks in memory.
	RedisURL     string        `mapstructure:"redis_url"`
	WatermarkTTL time.Duration `mapstructure:"watermark_ttl"`
	WorkflowID   string        `mapstructure:"workflow_id"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// LoadConfig reads drata.yaml (or file when set), then DRATA_* environment
// variables, then flags already bound to v.
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("drata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.drata")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Using config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := client.DefaultConfig("")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("user_agent", defaults.UserAgent)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("rate_limit", defaults.RateLimit)
	v.SetDefault("burst", defaults.Burst)
	v.SetDefault("max_reset_wait", defaults.MaxResetWait)
	v.SetDefault("redis_url", "")
	v.SetDefault("watermark_ttl", time.Duration(0))
	v.SetDefault("workflow_id", "cli")
	v.SetDefault("log_level", string(logging.LevelInfo))
	v.SetDefault("log_pretty", false)
}

// ClientConfig converts the CLI configuration into a client configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	cfg.Timeout = c.Timeout
	cfg.MaxRetries = c.MaxRetries
	cfg.RateLimit = c.RateLimit
	cfg.Burst = c.Burst
	cfg.MaxResetWait = c.MaxResetWait
	return cfg
}

// Credentials returns the node credentials of the configuration.
func (c *Config) Credentials() node.Credentials {
	return node.Credentials{APIKey: c.APIKey, BaseURL: c.BaseURL}
}

// NewClient builds an API client for creds using the remaining settings of c.
func (c *Config) NewClient(creds node.Credentials) (*client.Client, error) {
	cfg := c.ClientConfig()
	cfg.APIKey = creds.APIKey
	if creds.BaseURL != "" {
		cfg.BaseURL = creds.BaseURL
	}
	return client.New(cfg)
}

// LoggingConfig converts the log settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

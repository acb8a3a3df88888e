package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DASH_LISTEN_ADDR
const EnvPrefix = "DASH"

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `mapstructure:"listen_addr"`
	Debug      bool   `mapstructure:"debug"`

	// Upload handling
	MaxUploadMB      int    `mapstructure:"max_upload_mb"`
	UploadPassphrase string `mapstructure:"upload_passphrase"`

	// Dashboard presentation
	PageSize       int    `mapstructure:"page_size"`
	HistogramBins  int    `mapstructure:"histogram_bins"`
	CurrencySymbol string `mapstructure:"currency_symbol"`

	// Sessions and memoized views
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Optional on-disk overrides for the embedded web assets
	TemplatesDirectory string `mapstructure:"templates_dir"`
	StaticDirectory    string `mapstructure:"static_dir"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		Debug:          false,
		MaxUploadMB:    10,
		PageSize:       10,
		HistogramBins:  20,
		CurrencySymbol: "₽",
		SessionTTL:     2 * time.Hour,
		CacheSize:      128,
		CacheTTL:       10 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// SetDefaults registers every default with a viper instance so env overrides resolve
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("upload_passphrase", d.UploadPassphrase)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("histogram_bins", d.HistogramBins)
	v.SetDefault("currency_symbol", d.CurrencySymbol)
	v.SetDefault("session_ttl", d.SessionTTL)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("templates_dir", d.TemplatesDirectory)
	v.SetDefault("static_dir", d.StaticDirectory)
}

// Load reads configuration from .env, an optional config file and DASH_* environment variables.
// An empty cfgFile searches for salesdash.yaml in the working directory.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// A missing .env is fine; a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("salesdash")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if c.ListenAddr == "" {
		problems = append(problems, "listen address cannot be empty")
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		problems = append(problems, fmt.Sprintf("invalid max upload size %dMB: must be between 1 and 1024", c.MaxUploadMB))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		problems = append(problems, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}
	if c.HistogramBins < 1 || c.HistogramBins > 200 {
		problems = append(problems, fmt.Sprintf("invalid histogram bin count %d: must be between 1 and 200", c.HistogramBins))
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.CacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be console or json", c.LogFormat))
	}

	for _, dir := range []string{c.TemplatesDirectory, c.StaticDirectory} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("asset directory does not exist: %s", dir))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

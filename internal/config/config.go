// Package config loads tendril settings from defaults, an optional config
// file, TENDRIL_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/tendril/internal/fingerprint"
	"github.com/FranksOps/tendril/internal/storage/jsonbackend"
	"github.com/FranksOps/tendril/pkg/logger"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TENDRIL_MAX_PAGES.
const EnvPrefix = "TENDRIL"

// Keys double as flag names.
const (
	KeyDepth        = "depth"
	KeyDelay        = "delay"
	KeyJitter       = "jitter"
	KeyMaxPages     = "max-pages"
	KeyTimeout      = "timeout"
	KeyMaxRedirects = "max-redirects"
	KeyCookieJar    = "cookie-jar"
	KeyProfile      = "profile"
	KeyProxyFile    = "proxy-file"
	KeyUserAgent    = "user-agent"
	KeyOut          = "out"
	KeyLayout       = "layout"
	KeyStore        = "store"
	KeyCSVPath      = "csv-path"
	KeySQLitePath   = "sqlite-path"
	KeyPostgresDSN  = "postgres-dsn"
	KeyRedisAddr    = "redis-addr"
	KeyRedisPrefix  = "redis-prefix"
	KeyMetricsPort  = "metrics-port"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
	KeyProgress     = "progress"
	KeySummary      = "summary"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	Depth        int           `mapstructure:"depth"`
	Delay        time.Duration `mapstructure:"delay"`
	Jitter       float64       `mapstructure:"jitter"`
	MaxPages     int           `mapstructure:"max-pages"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max-redirects"`
	CookieJar    bool          `mapstructure:"cookie-jar"`
	Profile      string        `mapstructure:"profile"`
	ProxyFile    string        `mapstructure:"proxy-file"`
	UserAgents   []string      `mapstructure:"user-agent"`

	Out         string   `mapstructure:"out"`
	Layout      string   `mapstructure:"layout"`
	Stores      []string `mapstructure:"store"`
	CSVPath     string   `mapstructure:"csv-path"`
	SQLitePath  string   `mapstructure:"sqlite-path"`
	PostgresDSN string   `mapstructure:"postgres-dsn"`
	RedisAddr   string   `mapstructure:"redis-addr"`
	RedisPrefix string   `mapstructure:"redis-prefix"`

	MetricsPort int    `mapstructure:"metrics-port"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	Progress    bool   `mapstructure:"progress"`
	Summary     string `mapstructure:"summary"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key. Keys without a default are invisible to
// Unmarshal, so each one needs an entry here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDepth, 1)
	v.SetDefault(KeyDelay, time.Second)
	v.SetDefault(KeyJitter, 0.0)
	v.SetDefault(KeyMaxPages, 0)
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyMaxRedirects, 10)
	v.SetDefault(KeyCookieJar, false)
	v.SetDefault(KeyProfile, string(fingerprint.ProfileGo))
	v.SetDefault(KeyProxyFile, "")
	v.SetDefault(KeyUserAgent, []string{})

	v.SetDefault(KeyOut, ".")
	v.SetDefault(KeyLayout, string(jsonbackend.LayoutDepth))
	v.SetDefault(KeyStore, []string{"json"})
	v.SetDefault(KeyCSVPath, "")
	v.SetDefault(KeySQLitePath, "")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisPrefix, "tendril")

	v.SetDefault(KeyMetricsPort, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, string(logger.FormatText))
	v.SetDefault(KeyProgress, true)
	v.SetDefault(KeySummary, "")
}

// Load reads file, when given, and resolves the configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component accepts.
func (c *Config) Validate() error {
	var errs []error
	if c.Depth < 0 {
		errs = append(errs, fmt.Errorf("depth must not be negative, got %d", c.Depth))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter must be within [0, 1], got %v", c.Jitter))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max-pages must not be negative, got %d", c.MaxPages))
	}
	if _, err := fingerprint.ParseProfile(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if _, err := jsonbackend.ParseLayout(c.Layout); err != nil {
		errs = append(errs, err)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch logger.Format(c.LogFormat) {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	switch c.Summary {
	case "", "text", "json", "html":
	default:
		errs = append(errs, fmt.Errorf("unknown summary format %q", c.Summary))
	}
	return errors.Join(errs...)
}

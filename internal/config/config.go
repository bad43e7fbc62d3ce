package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RTDCHECK_TABLE_PAGE_SIZE
const EnvPrefix = "RTDCHECK"

// Config represents the checker configuration
type Config struct {
	Target      TargetConfig      `mapstructure:"target"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Table       TableConfig       `mapstructure:"table"`
	Intercept   InterceptConfig   `mapstructure:"intercept"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	History     HistoryConfig     `mapstructure:"history"`
	Suite       string            `mapstructure:"suite"`
}

type TargetConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	LoginPath    string `mapstructure:"login_path"`
	RTDPath      string `mapstructure:"rtd_path"`
	DataEndpoint string `mapstructure:"data_endpoint"`
	DataMethod   string `mapstructure:"data_method"`
}

type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type BrowserConfig struct {
	Driver         string        `mapstructure:"driver"`
	Headless       bool          `mapstructure:"headless"`
	SlowMo         time.Duration `mapstructure:"slow_mo"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	ActionTimeout  time.Duration `mapstructure:"action_timeout"`
	Install        bool          `mapstructure:"install"`
}

// Settle modes for TableConfig.SettleMode
const (
	SettleSummary = "summary"
	SettleFixed   = "fixed"
	SettleNetwork = "network"
)

type TableConfig struct {
	PageSize      int           `mapstructure:"page_size"`
	SettleMode    string        `mapstructure:"settle_mode"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
}

type InterceptConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type ArtifactsConfig struct {
	Dir         string `mapstructure:"dir"`
	Videos      bool   `mapstructure:"videos"`
	Traces      bool   `mapstructure:"traces"`
	Screenshots bool   `mapstructure:"screenshots"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
	Listen   string `mapstructure:"listen"`
}

type ScheduleConfig struct {
	Cron    string        `mapstructure:"cron"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.base_url", "http://localhost:8080")
	v.SetDefault("target.login_path", "/login")
	v.SetDefault("target.rtd_path", "/ready-to-dispatch")
	v.SetDefault("target.data_endpoint", "/api/v1/order/forward/get/data")
	v.SetDefault("target.data_method", "POST")

	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")

	v.SetDefault("browser.driver", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", "0s")
	v.SetDefault("browser.viewport_width", 1840)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.install", true)

	v.SetDefault("table.page_size", 10)
	v.SetDefault("table.settle_mode", SettleSummary)
	v.SetDefault("table.settle_delay", "5s")
	v.SetDefault("table.settle_timeout", "30s")

	v.SetDefault("intercept.timeout", "30s")

	v.SetDefault("artifacts.dir", "./test-results")
	v.SetDefault("artifacts.videos", false)
	v.SetDefault("artifacts.traces", true)
	v.SetDefault("artifacts.screenshots", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.listen", ":9464")

	v.SetDefault("schedule.cron", "0 0 6 * * *")
	v.SetDefault("schedule.timeout", "30m")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./test-results/history.db")

	v.SetDefault("suite", "")
}

// Loader owns the viper instance behind a configuration and the current decoded value
type Loader struct {
	v    *viper.Viper
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewLoader reads defaults, the optional YAML file at path, the optional .env file in
// the working directory and environment overrides, in increasing precedence.
func NewLoader(path string) (*Loader, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the login credentials keep their historical names
	if err := v.BindEnv("credentials.email", EnvPrefix+"_CREDENTIALS_EMAIL", "RTD_EMAIL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("credentials.password", EnvPrefix+"_CREDENTIALS_PASSWORD", "RTD_PASSWORD"); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loader{v: v, path: path, cfg: cfg}, nil
}

// Load is NewLoader followed by Config
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Config(), nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the current configuration (thread-safe)
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Viper exposes the underlying instance, e.g. for flag binding
func (l *Loader) Viper() *viper.Viper { return l.v }

// Reload decodes the configuration again and swaps it in when it is valid
func (l *Loader) Reload() (*Config, error) {
	cfg, err := decode(l.v)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Watch reloads on every change to the config file and hands the result to onChange.
// An invalid file keeps the previous configuration and reports the error instead.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) error {
	if l.path == "" {
		return errors.New("config: nothing to watch without a config file")
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.Reload()
		onChange(cfg, err)
	})
	l.v.WatchConfig()
	return nil
}

// LoadDotEnv exports KEY=VALUE pairs from path. Existing environment variables take
// precedence and are not overwritten. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

// DataURL is the absolute URL prefix of the RTD data endpoint
func (t TargetConfig) DataURL() string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + strings.TrimLeft(t.DataEndpoint, "/")
}

// Package config loads the host configuration from defaults, an optional
// file and TSUKI_ environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/tsuki-dev/tsuki-host/host"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// EnvPrefix prefixes every environment override: egress.timeout is read
// from TSUKI_EGRESS_TIMEOUT.
const EnvPrefix = "TSUKI"

// Config is the host configuration.
type Config struct {
	Listen   string  `mapstructure:"listen" validate:"required,hostname_port"`
	CacheDir string  `mapstructure:"cache_dir"`
	Egress   Egress  `mapstructure:"egress"`
	Limits   Limits  `mapstructure:"limits"`
	Log      Log     `mapstructure:"log"`
	Metrics  Metrics `mapstructure:"metrics"`
}

// Egress configures outbound HTTP made on behalf of guests.
type Egress struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	AllowPrivate bool          `mapstructure:"allow_private"`
}

// Limits bounds guest resource use.
type Limits struct {
	MaxRequestBytes uint32 `mapstructure:"max_request_bytes" validate:"gt=0"`
	// MemoryPages caps guest linear memory in 64KiB pages; zero keeps the
	// runtime default.
	MemoryPages uint32 `mapstructure:"memory_pages" validate:"lte=65536"`
}

// Log configures the CLI logger. An empty File logs to stderr.
type Log struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	File  string `mapstructure:"file"`
}

// Metrics configures the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:7480",
		Egress: Egress{
			Timeout:      30 * time.Second,
			MaxBodyBytes: hostfuncs.DefaultMaxBodySize,
		},
		Limits: Limits{
			MaxRequestBytes: hostfuncs.DefaultMaxRequestSize,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("egress.timeout", defaults.Egress.Timeout)
	v.SetDefault("egress.max_body_bytes", defaults.Egress.MaxBodyBytes)
	v.SetDefault("egress.allow_private", defaults.Egress.AllowPrivate)
	v.SetDefault("limits.max_request_bytes", defaults.Limits.MaxRequestBytes)
	v.SetDefault("limits.memory_pages", defaults.Limits.MemoryPages)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("metrics.listen", defaults.Metrics.Listen)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint and reports all violations.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})

	err := v.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		errs = append(errs, fmt.Errorf("config %s: failed %q constraint (value %v)", key, fe.Tag(), fe.Value()))
	}
	return errors.Join(errs...)
}

// EngineOptions translates the configuration into engine options.
func (c *Config) EngineOptions() []host.Option {
	opts := []host.Option{
		host.WithMaxRequestSize(c.Limits.MaxRequestBytes),
		host.WithEgressOptions(
			hostfuncs.WithHTTPRequestTimeout(c.Egress.Timeout),
			hostfuncs.WithHTTPMaxBodySize(c.Egress.MaxBodyBytes),
			hostfuncs.WithHTTPSSRFProtection(c.Egress.AllowPrivate),
		),
	}
	if c.Limits.MemoryPages > 0 {
		opts = append(opts, host.WithMemoryLimitPages(c.Limits.MemoryPages))
	}
	if c.CacheDir != "" {
		opts = append(opts, host.WithCompilationCache(c.CacheDir))
	}
	return opts
}

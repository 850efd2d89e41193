// Package config provides configuration structures and loading for the bin collection service.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/andygrunwald/bin-collection/internal/models"
	"github.com/andygrunwald/bin-collection/internal/schedule"
)

// Keys double as flag names. Environment variables use the upper-case form
// with dashes replaced by underscores, e.g. TEST_MODE_VARIANT.
const (
	KeyConfig           = "config"
	KeyUPRN             = "uprn"
	KeyTestMode         = "test-mode"
	KeyTestModeVariant  = "test-mode-variant"
	KeyHTTPAddr         = "http-addr"
	KeyLogLevel         = "log-level"
	KeyLogFormat        = "log-format"
	KeyPostgresDSN      = "postgres-dsn"
	KeyStoreRawResponse = "store-raw-response"
	KeyTimezone         = "timezone"
	KeyUpstreamURL      = "upstream-url"
	KeyCORSOrigin       = "cors-origin"
	KeyFallbackEnabled  = "fallback-enabled"
	KeyFallbackWeeks    = "fallback-weeks"
)

const (
	defaultUpstreamURL = "https://gis.stalbans.gov.uk/NoticeBoard9/VeoliaProxy.NoticeBoard.asmx/GetServicesByUprnAndNoticeBoard"
	defaultCORSOrigin  = "http://localhost:4200"
)

// Config holds all configuration for the bin collection service.
type Config struct {
	// Unique Property Reference Number of the premises
	UPRN string `mapstructure:"uprn"`
	// Serve canned data instead of calling the upstream service
	TestMode bool `mapstructure:"test-mode"`
	// Canned scenario (tomorrow, today, gap)
	TestModeVariant string `mapstructure:"test-mode-variant"`
	// HTTP server address
	HTTPAddr string `mapstructure:"http-addr"`
	// Log level (debug, info, warn, error)
	LogLevel string `mapstructure:"log-level"`
	// Log format (json, console)
	LogFormat string `mapstructure:"log-format"`
	// PostgreSQL connection string for the fetch archive, empty to disable it
	PostgresDSN string `mapstructure:"postgres-dsn"`
	// Store raw upstream responses in the archive
	StoreRawResponse bool `mapstructure:"store-raw-response"`
	// IANA time zone of the premises
	Timezone string `mapstructure:"timezone"`
	// Upstream notice board endpoint
	UpstreamURL string `mapstructure:"upstream-url"`
	// Origin allowed to call /api/ from a browser, empty to disable CORS
	CORSOrigin string `mapstructure:"cors-origin"`
	// Serve a predicted schedule when no upstream data is available
	FallbackEnabled bool `mapstructure:"fallback-enabled"`
	// Weeks covered by the predicted schedule
	FallbackWeeks int `mapstructure:"fallback-weeks"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		UPRN:             "",
		TestMode:         false,
		TestModeVariant:  string(models.ScenarioTomorrow),
		HTTPAddr:         ":3000",
		LogLevel:         "info",
		LogFormat:        "json",
		PostgresDSN:      "",
		StoreRawResponse: true,
		Timezone:         "Europe/London",
		UpstreamURL:      defaultUpstreamURL,
		CORSOrigin:       defaultCORSOrigin,
		FallbackEnabled:  true,
		FallbackWeeks:    schedule.DefaultFallbackWeeks,
	}
}

// RegisterFlags adds one flag per setting to fs, using the defaults as flag defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String(KeyConfig, "", "Config file (YAML, TOML or JSON)")
	fs.String(KeyUPRN, d.UPRN, "Unique Property Reference Number of the premises")
	fs.Bool(KeyTestMode, d.TestMode, "Serve canned data instead of calling the upstream service")
	fs.String(KeyTestModeVariant, d.TestModeVariant, "Canned scenario (tomorrow, today, gap)")
	fs.String(KeyHTTPAddr, d.HTTPAddr, "HTTP server address")
	fs.String(KeyLogLevel, d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, d.LogFormat, "Log format (json, console)")
	fs.String(KeyPostgresDSN, d.PostgresDSN, "PostgreSQL connection string for the fetch archive")
	fs.Bool(KeyStoreRawResponse, d.StoreRawResponse, "Store raw upstream responses in the archive")
	fs.String(KeyTimezone, d.Timezone, "IANA time zone of the premises")
	fs.String(KeyUpstreamURL, d.UpstreamURL, "Upstream notice board endpoint")
	fs.String(KeyCORSOrigin, d.CORSOrigin, "Origin allowed to call /api/ from a browser")
	fs.Bool(KeyFallbackEnabled, d.FallbackEnabled, "Serve a predicted schedule when no upstream data is available")
	fs.Int(KeyFallbackWeeks, d.FallbackWeeks, "Weeks covered by the predicted schedule")
}

// Load reads the configuration from v. Flags must already be bound. Precedence
// is flag, environment, config file, default.
func Load(v *viper.Viper) (*Config, error) {
	d := DefaultConfig()
	v.SetDefault(KeyUPRN, d.UPRN)
	v.SetDefault(KeyTestMode, d.TestMode)
	v.SetDefault(KeyTestModeVariant, d.TestModeVariant)
	v.SetDefault(KeyHTTPAddr, d.HTTPAddr)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyPostgresDSN, d.PostgresDSN)
	v.SetDefault(KeyStoreRawResponse, d.StoreRawResponse)
	v.SetDefault(KeyTimezone, d.Timezone)
	v.SetDefault(KeyUpstreamURL, d.UpstreamURL)
	v.SetDefault(KeyCORSOrigin, d.CORSOrigin)
	v.SetDefault(KeyFallbackEnabled, d.FallbackEnabled)
	v.SetDefault(KeyFallbackWeeks, d.FallbackWeeks)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.UPRN = strings.TrimSpace(cfg.UPRN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
// A missing UPRN is not an error: the service starts and reports it per request.
func (c *Config) Validate() error {
	var errs []error

	if c.UPRN != "" {
		if _, err := strconv.ParseInt(c.UPRN, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("uprn %q is not numeric", c.UPRN))
		}
	}
	if !schedule.ValidScenario(c.Scenario()) {
		errs = append(errs, fmt.Errorf("unknown test-mode-variant %q (want tomorrow, today or gap)", c.TestModeVariant))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("loading timezone %q: %w", c.Timezone, err))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("parsing log-level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("unknown log-format %q (want json or console)", c.LogFormat))
	}
	if c.FallbackWeeks < 0 {
		errs = append(errs, fmt.Errorf("fallback-weeks must not be negative, got %d", c.FallbackWeeks))
	}

	return errors.Join(errs...)
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Scenario returns the configured test scenario.
func (c *Config) Scenario() models.TestScenario {
	return models.TestScenario(strings.ToLower(strings.TrimSpace(c.TestModeVariant)))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/bin-collection/internal/models"
)

func newViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, "https://gis.stalbans.gov.uk/NoticeBoard9/VeoliaProxy.NoticeBoard.asmx/GetServicesByUprnAndNoticeBoard", cfg.UpstreamURL)
	assert.Equal(t, "http://localhost:4200", cfg.CORSOrigin)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, 12, cfg.FallbackWeeks)
	require.NoError(t, cfg.Validate())
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load(newViper(t,
		"--uprn", "100080869553",
		"--test-mode",
		"--test-mode-variant", "gap",
		"--fallback-weeks", "4",
		"--cors-origin", "",
	))
	require.NoError(t, err)

	assert.Equal(t, "100080869553", cfg.UPRN)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, models.ScenarioGap, cfg.Scenario())
	assert.Equal(t, 4, cfg.FallbackWeeks)
	assert.Empty(t, cfg.CORSOrigin)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("UPRN", " 100080869553 ")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("TEST_MODE_VARIANT", "today")
	t.Setenv("POSTGRES_DSN", "postgres://bins@localhost/bins")
	t.Setenv("STORE_RAW_RESPONSE", "false")
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "100080869553", cfg.UPRN)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, models.ScenarioToday, cfg.Scenario())
	assert.Equal(t, "postgres://bins@localhost/bins", cfg.PostgresDSN)
	assert.False(t, cfg.StoreRawResponse)
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(newViper(t, "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bincollection.yaml")
	content := "uprn: \"100080869553\"\nlog-format: console\nfallback-weeks: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(newViper(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, "100080869553", cfg.UPRN)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 6, cfg.FallbackWeeks)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(newViper(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		modify  func(*Config)
		wantErr string
	}{
		"defaults":           {modify: func(*Config) {}},
		"numeric UPRN":       {modify: func(c *Config) { c.UPRN = "100080869553" }},
		"non numeric UPRN":   {modify: func(c *Config) { c.UPRN = "12 Acacia Avenue" }, wantErr: "not numeric"},
		"unknown scenario":   {modify: func(c *Config) { c.TestModeVariant = "yesterday" }, wantErr: "test-mode-variant"},
		"scenario case":      {modify: func(c *Config) { c.TestModeVariant = "GAP" }},
		"unknown timezone":   {modify: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		"unknown log level":  {modify: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log-level"},
		"unknown log format": {modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log-format"},
		"negative weeks":     {modify: func(c *Config) { c.FallbackWeeks = -1 }, wantErr: "fallback-weeks"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

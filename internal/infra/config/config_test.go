package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)

	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4, cfg.Timing.Method)
	require.Equal(t, BackendMemory, cfg.Preferences.Backend)
	require.Equal(t, AudioHeadless, cfg.Adhan.Backend)
	require.False(t, cfg.Adhan.Bucket.Enabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9090"
timing:
  method: 2
  timezone: "UTC"
countdown:
  preAlertLead: 10m
adhan:
  reciter: "madinah"
  fallbackReciters: ["makkah", "alaqsa"]
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TIMING_METHOD", "3")
	t.Setenv("HTTP_CORS_ORIGINS", "http://localhost:3000, https://home.example ,")
	t.Setenv("ADHAN_AUTOPLAY", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, 3, cfg.Timing.Method)
	require.Equal(t, 10*time.Minute, cfg.Countdown.PreAlertLead)
	require.Equal(t, "madinah", cfg.Adhan.Reciter)
	require.Equal(t, []string{"makkah", "alaqsa"}, cfg.Adhan.FallbackReciters)
	require.Equal(t, []string{"http://localhost:3000", "https://home.example"}, cfg.HTTP.CORS.AllowedOrigins)
	require.False(t, cfg.Adhan.AutoPlay)

	loc, err := cfg.Timing.LoadLocation()
	require.NoError(t, err)
	require.Equal(t, "UTC", loc.String())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty address":        func(c *Config) { c.HTTP.Address = "" },
		"bad method":           func(c *Config) { c.Timing.Method = 42 },
		"bad timezone":         func(c *Config) { c.Timing.Timezone = "Mars/Olympus" },
		"valkey without addr":  func(c *Config) { c.Preferences.Backend = BackendValkey },
		"postgres without dsn": func(c *Config) { c.Preferences.Backend = BackendPostgres },
		"unknown store":        func(c *Config) { c.Preferences.Backend = "sqlite" },
		"unknown audio":        func(c *Config) { c.Adhan.Backend = "alsa" },
		"zero tick":            func(c *Config) { c.Countdown.TickInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	cfg := defaultConfig()
	cfg.Timing.Method = 99
	require.NoError(t, cfg.Validate())
}

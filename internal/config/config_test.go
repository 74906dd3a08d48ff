package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/astrovoice/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, 800*time.Millisecond, cfg.Calc.CallTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.Server.TurnDeadline)
	assert.Equal(t, 200*time.Millisecond, cfg.Calc.FallbackReserve)
	assert.Equal(t, []string{"remote", "httpapi", "builtin"}, cfg.BackendOrder())
	assert.Equal(t, []string{"natal_chart", "transits", "lunar_calendar"}, cfg.Calc.RemoteKinds)
	assert.Contains(t, cfg.Platforms, domain.PlatformAlice)
	assert.Equal(t, 1024, cfg.Platforms[domain.PlatformAlice].MaxText)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_TIMEOUT", "3m")
	t.Setenv("CALC_BACKENDS", " builtin , HTTPAPI ")
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, []string{"builtin", "httpapi"}, cfg.BackendOrder())
	assert.Equal(t, "memory", cfg.Session.Store)
}

func TestLoad_YAMLProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
platforms:
  alice:
    max_actions: 3
  telegram:
    max_text: 500
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	alice := cfg.Platforms[domain.PlatformAlice]
	assert.Equal(t, 3, alice.MaxActions)
	assert.Equal(t, 1024, alice.MaxText, "unset fields fall back to the built-in profile")

	tg := cfg.Platforms["telegram"]
	assert.Equal(t, "telegram", tg.Name)
	assert.Equal(t, 500, tg.MaxText)
	assert.Equal(t, 8, tg.MaxActions)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080", TurnDeadline: 2 * time.Second},
			Session:   SessionConfig{Store: "memory", Timeout: time.Minute, SweepInterval: time.Minute},
			Calc:      CalcConfig{Backends: "builtin", CallTimeout: time.Second, FallbackReserve: 200 * time.Millisecond, CacheSize: 10},
			NLU:       NLUConfig{CacheSize: 10},
			RateLimit: RateLimitConfig{PerMinute: 10},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"unknown store", func(c *Config) { c.Session.Store = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Session.Store = "postgres" }},
		{"call timeout above deadline", func(c *Config) { c.Calc.CallTimeout = 3 * time.Second }},
		{"no backends", func(c *Config) { c.Calc.Backends = " , " }},
		{"zero fallback reserve", func(c *Config) { c.Calc.FallbackReserve = 0 }},
		{"fallback reserve above deadline", func(c *Config) { c.Calc.FallbackReserve = 2 * time.Second }},
		{"zero session timeout", func(c *Config) { c.Session.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ashureev/astrovoice/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig                      `yaml:"server"`
	Log       LogConfig                         `yaml:"log"`
	Session   SessionConfig                     `yaml:"session"`
	Calc      CalcConfig                        `yaml:"calc"`
	Advisor   AdvisorConfig                     `yaml:"advisor"`
	NLU       NLUConfig                         `yaml:"nlu"`
	RateLimit RateLimitConfig                   `yaml:"rate_limit"`
	CORS      CORSConfig                        `yaml:"cors"`
	Platforms map[string]domain.PlatformProfile `yaml:"platforms"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	FrontendURL     string        `yaml:"frontend_url"     env:"FRONTEND_URL"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// TurnDeadline is the hard end-to-end budget for one webhook turn.
	TurnDeadline       time.Duration `yaml:"turn_deadline"         env:"TURN_DEADLINE"          env-default:"2500ms"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size" env:"MAX_REQUEST_BODY_SIZE"  env-default:"65536"`
	WebChatEnabled     bool          `yaml:"web_chat_enabled"      env:"WEB_CHAT_ENABLED"       env-default:"true"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SessionConfig controls session persistence and expiry.
type SessionConfig struct {
	Store         string        `yaml:"store"          env:"SESSION_STORE"          env-default:"sqlite"`
	Timeout       time.Duration `yaml:"timeout"        env:"SESSION_TIMEOUT"        env-default:"10m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
	Retention     time.Duration `yaml:"retention"      env:"SESSION_RETENTION"      env-default:"168h"`
	DBPath        string        `yaml:"db_path"        env:"DB_PATH"                env-default:"./data/sessions.db"`
	RedisAddr     string        `yaml:"redis_addr"     env:"REDIS_ADDR"             env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"       env:"REDIS_DB"               env-default:"0"`
	PostgresDSN   string        `yaml:"postgres_dsn"   env:"POSTGRES_DSN"`
}

// CalcConfig controls the calculation gateway and its backends.
type CalcConfig struct {
	// Backends is the comma-separated priority order.
	Backends        string        `yaml:"backends"         env:"CALC_BACKENDS"          env-default:"remote,httpapi,builtin"`
	CallTimeout     time.Duration `yaml:"call_timeout"     env:"CALC_CALL_TIMEOUT"      env-default:"800ms"`
	// FallbackReserve is kept from the turn deadline for the last backend.
	FallbackReserve time.Duration `yaml:"fallback_reserve" env:"CALC_FALLBACK_RESERVE"  env-default:"200ms"`
	AvailabilityTTL time.Duration `yaml:"availability_ttl" env:"CALC_AVAILABILITY_TTL"  env-default:"30s"`
	CacheSize       int           `yaml:"cache_size"       env:"CALC_CACHE_SIZE"        env-default:"2048"`

	NatalTTL         time.Duration `yaml:"natal_ttl"         env:"CALC_TTL_NATAL"         env-default:"24h"`
	CompatibilityTTL time.Duration `yaml:"compatibility_ttl" env:"CALC_TTL_COMPATIBILITY" env-default:"24h"`
	HoroscopeTTL     time.Duration `yaml:"horoscope_ttl"     env:"CALC_TTL_HOROSCOPE"     env-default:"1h"`
	LunarTTL         time.Duration `yaml:"lunar_ttl"         env:"CALC_TTL_LUNAR"         env-default:"1h"`
	TransitsTTL      time.Duration `yaml:"transits_ttl"      env:"CALC_TTL_TRANSITS"      env-default:"5m"`

	RemoteAddr   string   `yaml:"remote_addr"    env:"CALC_REMOTE_ADDR"`
	RemoteKinds  []string `yaml:"remote_kinds"   env:"CALC_REMOTE_KINDS"    env-default:"natal_chart,transits,lunar_calendar" env-separator:","`
	HTTPBaseURL  string   `yaml:"http_base_url"  env:"CALC_HTTP_BASE_URL"`
	HTTPAPIKey   string   `yaml:"http_api_key"   env:"CALC_HTTP_API_KEY"`
	HTTPAPIKinds []string `yaml:"http_api_kinds" env:"CALC_HTTP_API_KINDS"  env-default:"horoscope,compatibility" env-separator:","`
}

// AdvisorConfig configures the AI consultation service.
type AdvisorConfig struct {
	Addr    string        `yaml:"addr"    env:"ADVISOR_ADDR"`
	Timeout time.Duration `yaml:"timeout" env:"ADVISOR_TIMEOUT" env-default:"1500ms"`
}

// NLUConfig configures the intent extractor.
type NLUConfig struct {
	CacheSize int `yaml:"cache_size" env:"NLU_CACHE_SIZE" env-default:"1024"`
}

// RateLimitConfig limits turns per user.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	Burst     int `yaml:"burst"      env:"RATE_LIMIT_BURST"      env-default:"10"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// Load reads configuration from an optional YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path comes from CONFIG_PATH
// (fallback "./config.yaml"); a missing default file is not an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	cfg.Platforms = mergeProfiles(cfg.Platforms)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func mergeProfiles(overrides map[string]domain.PlatformProfile) map[string]domain.PlatformProfile {
	out := domain.DefaultProfiles()
	for name, p := range overrides {
		base, ok := out[name]
		if !ok {
			base = out[domain.PlatformWeb]
		}
		p.Name = name
		out[name] = p.Merge(base)
	}
	return out
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Server.TurnDeadline <= 0 {
		return fmt.Errorf("TURN_DEADLINE must be > 0")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	switch c.Session.Store {
	case "memory", "redis":
	case "sqlite":
		if c.Session.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty for the sqlite store")
		}
	case "postgres":
		if c.Session.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN cannot be empty for the postgres store")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}
	if c.Calc.CallTimeout <= 0 {
		return fmt.Errorf("CALC_CALL_TIMEOUT must be > 0")
	}
	if c.Calc.CallTimeout >= c.Server.TurnDeadline {
		return fmt.Errorf("CALC_CALL_TIMEOUT (%s) must be below TURN_DEADLINE (%s)", c.Calc.CallTimeout, c.Server.TurnDeadline)
	}
	if c.Calc.FallbackReserve <= 0 || c.Calc.FallbackReserve >= c.Server.TurnDeadline {
		return fmt.Errorf("CALC_FALLBACK_RESERVE (%s) must be > 0 and below TURN_DEADLINE (%s)", c.Calc.FallbackReserve, c.Server.TurnDeadline)
	}
	if len(c.BackendOrder()) == 0 {
		return fmt.Errorf("CALC_BACKENDS cannot be empty")
	}
	if c.NLU.CacheSize <= 0 {
		return fmt.Errorf("NLU_CACHE_SIZE must be > 0")
	}
	if c.Calc.CacheSize <= 0 {
		return fmt.Errorf("CALC_CACHE_SIZE must be > 0")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	return nil
}

// BackendOrder returns the configured backend names in priority order.
func (c *Config) BackendOrder() []string {
	var out []string
	for _, name := range strings.Split(c.Calc.Backends, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.FrontendURL == "" ||
		strings.Contains(c.Server.FrontendURL, "localhost") ||
		strings.Contains(c.Server.FrontendURL, "127.0.0.1")
}

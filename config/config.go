/*
config.go - Application configuration

PURPOSE:
  Loads server, database, auth, logging, clock and attendance settings.
  Precedence: environment > config file > .env file > defaults.

ENVIRONMENT:
  Keys are prefixed with WORKDAY_ and dots become underscores, so
  auth.jwt_secret is read from WORKDAY_AUTH_JWT_SECRET.

SEE ALSO:
  - cmd/server/main.go: consumer
  - logger/logger.go: built from LogConfig
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Clock      ClockConfig      `mapstructure:"clock"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Seed       SeedConfig       `mapstructure:"seed"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Path          string        `mapstructure:"path"`
	BusyTimeoutMS int           `mapstructure:"busy_timeout_ms"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type ClockConfig struct {
	// Location is the IANA zone that civil dates and clock times live in.
	Location string `mapstructure:"location"`
}

// Load resolves the zone. Validate has already rejected unknown names.
func (c ClockConfig) Load() (*time.Location, error) {
	return time.LoadLocation(c.Location)
}

type AttendanceConfig struct {
	DailyStipend     string `mapstructure:"daily_stipend"`
	MinWorkedMinutes int    `mapstructure:"min_worked_minutes_for_stipend"`

	// SweepInterval runs the auto-close sweep in the background. Zero
	// leaves reconciliation to session reads and the HR endpoint.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (c AttendanceConfig) Stipend() (decimal.Decimal, error) {
	return decimal.NewFromString(c.DailyStipend)
}

func (c AttendanceConfig) SweepEnabled() bool { return c.SweepInterval > 0 }

type SeedConfig struct {
	Demo bool `mapstructure:"demo"`
}

// Load reads configuration. path may name an explicit config file; when
// empty, config.yaml is looked up in ./config and the working directory.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.path", "workday.db")
	v.SetDefault("db.busy_timeout_ms", 5000)
	v.SetDefault("db.op_timeout", "5s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.issuer", "workday")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("clock.location", "UTC")

	v.SetDefault("attendance.daily_stipend", "0")
	v.SetDefault("attendance.min_worked_minutes_for_stipend", 240)
	v.SetDefault("attendance.sweep_interval", "0s")

	v.SetDefault("seed.demo", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WORKDAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
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

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("invalid config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid config: auth.token_ttl must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("invalid config: db.path is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("invalid config: db.busy_timeout_ms cannot be negative")
	}
	if _, err := c.Clock.Load(); err != nil {
		return fmt.Errorf("invalid config: clock.location: %w", err)
	}
	stipend, err := c.Attendance.Stipend()
	if err != nil {
		return fmt.Errorf("invalid config: attendance.daily_stipend: %w", err)
	}
	if stipend.IsNegative() {
		return fmt.Errorf("invalid config: attendance.daily_stipend cannot be negative")
	}
	if c.Attendance.MinWorkedMinutes < 0 {
		return fmt.Errorf("invalid config: attendance.min_worked_minutes_for_stipend cannot be negative")
	}
	if c.Attendance.SweepInterval < 0 {
		return fmt.Errorf("invalid config: attendance.sweep_interval cannot be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid config: log.format must be json or console")
	}
	return nil
}

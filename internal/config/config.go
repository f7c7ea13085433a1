// Package config loads the workstation configuration from an optional
// config file plus environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Port        int               `mapstructure:"port"`
	Endpoint    string            `mapstructure:"endpoint"`
	Milks       []string          `mapstructure:"milks"`
	Textures    []string          `mapstructure:"textures"`
	SearchDepth int               `mapstructure:"search_depth"`
	MilkColors  map[string]string `mapstructure:"milk_colors"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Generator   GeneratorConfig   `mapstructure:"generator"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty Host
// disables persistence entirely; the queue then lives in memory only.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Enabled reports whether persistence is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// LogConfig holds logging settings. File is optional; when set, output
// rotates there as well as stdout.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// GeneratorConfig drives demo mode: the ordergen service address and
// how often the workstation pulls an order from it.
type GeneratorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxDrinks    int           `mapstructure:"max_drinks"`
	Port         int           `mapstructure:"port"`
}

// Load reads configuration from config.{yaml,json} in the working
// directory or ./config, then applies BARISTAQ_* environment
// overrides. A missing file is fine; defaults cover everything except
// database credentials.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BARISTAQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Endpoint == "" {
		// A random intake path keeps drive-by order submissions out.
		cfg.Endpoint = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	cfg.Endpoint = strings.TrimPrefix(cfg.Endpoint, "/")

	if cfg.SearchDepth < 1 {
		return nil, fmt.Errorf("search_depth must be at least 1, got %d", cfg.SearchDepth)
	}
	if len(cfg.Milks) == 0 || len(cfg.Textures) == 0 {
		return nil, errors.New("milks and textures must not be empty")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("milks", []string{"Whole", "Semi Skimmed", "Oat", "Soy"})
	v.SetDefault("textures", []string{"Wet", "Dry"})
	v.SetDefault("search_depth", 4)
	v.SetDefault("milk_colors", map[string]string{
		"Whole":        "#0000FF",
		"Semi Skimmed": "#008000",
		"Oat":          "#800080",
		"Soy":          "#FF0000",
	})

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "baristaq")
	v.SetDefault("database.name", "baristaq")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("generator.enabled", false)
	v.SetDefault("generator.url", "http://localhost:8081/order")
	v.SetDefault("generator.poll_interval", 15*time.Second)
	v.SetDefault("generator.max_drinks", 4)
	v.SetDefault("generator.port", 8081)
}

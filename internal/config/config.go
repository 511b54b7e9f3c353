package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Sync      SyncConfig      `yaml:"sync"`
	Invite    InviteConfig    `yaml:"invite"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
}

type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// SlogLevel maps Level onto a slog level. Unknown names log at info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
	// DefaultUser is the identity used when auth is disabled.
	DefaultUser string `yaml:"default_user"`
}

type SyncConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	SuppressionWindow time.Duration `yaml:"suppression_window"`
	SaveDebounce      time.Duration `yaml:"save_debounce"`
	ForkConcurrency   int           `yaml:"fork_concurrency"`
}

type InviteConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "marginalia.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			DefaultUser: "local",
		},
		Sync: SyncConfig{
			PollInterval:      5 * time.Second,
			SuppressionWindow: 2 * time.Second,
			SaveDebounce:      1500 * time.Millisecond,
			ForkConcurrency:   4,
		},
		Invite: InviteConfig{
			TTL: 7 * 24 * time.Hour,
		},
	}
}

// Load reads configuration from an optional .env file, an optional YAML
// file and environment variables, in that order of increasing precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("MARGINALIA_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "MARGINALIA_SERVER_HOST")
	if err := setInt(&cfg.Server.Port, "MARGINALIA_SERVER_PORT"); err != nil {
		return err
	}
	if origins := os.Getenv("MARGINALIA_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	setString(&cfg.Transport.Mode, "MARGINALIA_TRANSPORT")
	setString(&cfg.DB.Driver, "MARGINALIA_DB_DRIVER")
	setString(&cfg.DB.DSN, "MARGINALIA_DB_DSN")
	setString(&cfg.Log.Level, "MARGINALIA_LOG_LEVEL")
	setString(&cfg.Log.Path, "MARGINALIA_LOG_PATH")
	if err := setBool(&cfg.Auth.Enabled, "MARGINALIA_AUTH_ENABLED"); err != nil {
		return err
	}
	setString(&cfg.Auth.JWTSecret, "MARGINALIA_JWT_SECRET")
	setString(&cfg.Auth.DefaultUser, "MARGINALIA_DEFAULT_USER")
	for key, dst := range map[string]*time.Duration{
		"MARGINALIA_POLL_INTERVAL":      &cfg.Sync.PollInterval,
		"MARGINALIA_SUPPRESSION_WINDOW": &cfg.Sync.SuppressionWindow,
		"MARGINALIA_SAVE_DEBOUNCE":      &cfg.Sync.SaveDebounce,
		"MARGINALIA_INVITE_TTL":         &cfg.Invite.TTL,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return setInt(&cfg.Sync.ForkConcurrency, "MARGINALIA_FORK_CONCURRENCY")
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid db driver %q", c.DB.Driver)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth enabled but MARGINALIA_JWT_SECRET is empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

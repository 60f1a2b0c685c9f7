package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration, loaded from a YAML file.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Postgres PostgresConfig `yaml:"postgres"`

	Redis struct {
		Host        string `yaml:"host"`
		SessionDB   int    `yaml:"session_db"`
		RateLimitDB int    `yaml:"rate_limit_db"`
	} `yaml:"redis"`

	Auth struct {
		CookieName string `yaml:"cookie_name"`
		// TokenKey is the hex-encoded 32-byte symmetric key for session
		// tokens. Empty means a random key is generated at startup, which
		// invalidates sessions across restarts.
		TokenKey   string        `yaml:"token_key"`
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"auth"`

	Gate GateConfig `yaml:"gate"`

	PDF struct {
		ChromePath     string `yaml:"chrome_path"`
		NoSandbox      bool   `yaml:"no_sandbox"`
		TimeoutSecs    int    `yaml:"timeout_secs"`
		MarkerSelector string `yaml:"marker_selector"`
		IdleWindowMS   int    `yaml:"idle_window_ms"`
		UserDataDir    string `yaml:"user_data_dir"`
	} `yaml:"pdf"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`
}

// PostgresConfig describes how to reach the Postgres instance backing
// users and stored CVs. Host may also be a full postgres:// DSN.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// GateConfig drives the edge access gate: which paths require a session,
// which are reachable only without one, and which requests bypass the
// gate entirely.
type GateConfig struct {
	ProtectedPaths  []string `yaml:"protected_paths"`
	PublicOnlyPaths []string `yaml:"public_only_paths"`
	LoginPath       string   `yaml:"login_path"`
	HomePath        string   `yaml:"home_path"`
	SkipPrefixes    []string `yaml:"skip_prefixes"`
	SkipSuffixes    []string `yaml:"skip_suffixes"`
	SkipExact       []string `yaml:"skip_exact"`
}

// Load reads the config from CONFIG_PATH, falling back to ./config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the config file at path. Invalid values are
// configuration defects, not runtime errors: it panics.
func LoadFrom(path string) Config {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: cannot read %s: %v", path, err))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: cannot parse %s: %v", path, err))
	}

	applyDefaults(&cfg)

	if cfg.PDF.TimeoutSecs < 0 {
		panic("config: pdf.timeout_secs must not be negative")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		panic("config: rate_limiter.user_limit must not be negative")
	}
	if cfg.Auth.SessionTTL < 0 {
		panic("config: auth.session_ttl must not be negative")
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "auth_token"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.PDF.TimeoutSecs == 0 {
		cfg.PDF.TimeoutSecs = 30
	}
	if cfg.PDF.MarkerSelector == "" {
		cfg.PDF.MarkerSelector = "#cv-preview-container"
	}
	if cfg.PDF.IdleWindowMS == 0 {
		cfg.PDF.IdleWindowMS = 500
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if len(cfg.Gate.ProtectedPaths) == 0 {
		cfg.Gate.ProtectedPaths = []string{"/", "/my-cvs", "/profile"}
	}
	if len(cfg.Gate.PublicOnlyPaths) == 0 {
		cfg.Gate.PublicOnlyPaths = []string{"/auth/login", "/auth/register"}
	}
	if cfg.Gate.LoginPath == "" {
		cfg.Gate.LoginPath = "/auth/login"
	}
	if cfg.Gate.HomePath == "" {
		cfg.Gate.HomePath = "/"
	}
	if len(cfg.Gate.SkipPrefixes) == 0 {
		cfg.Gate.SkipPrefixes = []string{"/api/", "/static/"}
	}
	if len(cfg.Gate.SkipSuffixes) == 0 {
		cfg.Gate.SkipSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}
	}
	if len(cfg.Gate.SkipExact) == 0 {
		cfg.Gate.SkipExact = []string{"/favicon.ico"}
	}
}

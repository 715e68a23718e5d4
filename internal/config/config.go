package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "spousedetails/internal/log"
)

// Auth modes.
const (
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
)

// AuthConfig describes how bearer tokens are verified.
type AuthConfig struct {
	// Mode is "jwt" (verify HS256 tokens locally with JWTSecret) or
	// "remote" (ask the hosted auth service at ServiceURL).
	Mode string `yaml:"mode" json:"mode"`

	JWTSecret string `yaml:"jwt_secret" json:"-"`
	Issuer    string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience  string `yaml:"audience,omitempty" json:"audience,omitempty"`

	ServiceURL string `yaml:"service_url,omitempty" json:"service_url,omitempty"`
	ServiceKey string `yaml:"service_key,omitempty" json:"-"`
}

// RemindersConfig controls the due-reminder scanner and the upcoming view.
type RemindersConfig struct {
	// Scan is a cron-style schedule string (e.g. "0 8 * * *").
	Scan string `yaml:"scan" json:"scan"`
	// HorizonDays is the default window for /api/reminders/upcoming.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// CalendarConfig holds the fixed strings written into generated .ics files.
type CalendarConfig struct {
	ProductID   string `yaml:"product_id" json:"product_id"`
	UIDDomain   string `yaml:"uid_domain" json:"uid_domain"`
	Placeholder string `yaml:"placeholder" json:"placeholder"`
	// Strict enables date validation and RFC 5545 text escaping.
	Strict bool `yaml:"strict" json:"strict"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DatabasePath is the SQLite file path (":memory:" allowed for dev).
	DatabasePath string `yaml:"database_path" json:"database_path"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Timezone is the IANA timezone used for "today" in reminder math.
	Timezone string `yaml:"timezone" json:"timezone"`

	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Reminders RemindersConfig `yaml:"reminders" json:"reminders"`
	Calendar  CalendarConfig  `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		DatabasePath: "./var/spousedetails.db",
		LogLevel:     "info",
		Timezone:     "UTC",
		Auth: AuthConfig{
			Mode: AuthModeJWT,
		},
		Reminders: RemindersConfig{
			Scan:        "0 8 * * *",
			HorizonDays: 30,
		},
		Calendar: CalendarConfig{
			ProductID:   "Spouse Details App",
			UIDDomain:   "spousedetails.app",
			Placeholder: "Reminder from Spouse Details App",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.Auth.Mode {
	case AuthModeJWT, AuthModeRemote:
	default:
		c.Auth.Mode = AuthModeJWT
	}
	if c.Reminders.Scan == "" {
		c.Reminders.Scan = def.Reminders.Scan
	}
	if c.Reminders.HorizonDays <= 0 {
		c.Reminders.HorizonDays = def.Reminders.HorizonDays
	}
	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = def.Calendar.ProductID
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = def.Calendar.UIDDomain
	}
	if c.Calendar.Placeholder == "" {
		c.Calendar.Placeholder = def.Calendar.Placeholder
	}
}

// Validate reports configuration that would make the server unusable.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
	case AuthModeRemote:
		if c.Auth.ServiceURL == "" || c.Auth.ServiceKey == "" {
			return errors.New("auth.service_url and auth.service_key are required in remote mode")
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If it exists, YAML is unmarshaled and defaults are normalized.
//   - A .env file next to the config (or in the working directory) is
//     loaded, then SPOUSEDETAILS_* variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.applyEnvOverrides()
				return cfg, err
			}
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.Normalize()

	return &cfg, nil
}

// loadDotEnv loads the first existing env file. Existing process
// variables are never overwritten.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPOUSEDETAILS_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SPOUSEDETAILS_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("SPOUSEDETAILS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SPOUSEDETAILS_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("SPOUSEDETAILS_AUTH_MODE"); v != "" {
		c.Auth.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("SPOUSEDETAILS_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("SPOUSEDETAILS_AUTH_SERVICE_URL"); v != "" {
		c.Auth.ServiceURL = v
	}
	if v := os.Getenv("SPOUSEDETAILS_AUTH_SERVICE_KEY"); v != "" {
		c.Auth.ServiceKey = v
	}
	if v := os.Getenv("SPOUSEDETAILS_CALENDAR_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Calendar.Strict = b
		}
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".spousedetails-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

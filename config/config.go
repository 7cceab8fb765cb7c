package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"g4s-calendar/reconcile"
	"g4s-calendar/scraper"
)

// Environment variables that override the file.
const (
	EnvUsername = "G4S_USERNAME"
	EnvPassword = "G4S_PASSWORD"
)

// GoogleConfig holds the OAuth client used for calendar access.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	CalendarID   string `yaml:"calendar_id"`
	TokenFile    string `yaml:"token_file"`
}

// GitHubConfig describes where an exported calendar file is published.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
}

// Config is the application configuration.
type Config struct {
	Username string `yaml:"username"`
	// Password is never written back to disk.
	Password string `yaml:"-"`

	LoginURL string `yaml:"login_url"`
	APIBase  string `yaml:"api_base"`
	Origin   string `yaml:"origin"`

	// TimeZone is attached to timed calendar events.
	TimeZone string `yaml:"time_zone"`
	// SyncSchedule is the cron expression used by the watch command.
	SyncSchedule string `yaml:"sync_schedule"`
	// ExportPath is where the export command writes the calendar file.
	ExportPath string `yaml:"export_path"`

	Google GoogleConfig  `yaml:"google"`
	GitHub *GitHubConfig `yaml:"github,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		LoginURL:     scraper.DefaultLoginURL,
		APIBase:      scraper.DefaultAPIBase,
		Origin:       scraper.DefaultOrigin,
		TimeZone:     reconcile.DefaultTimeZone,
		SyncSchedule: "0 7 * * *",
		ExportPath:   "g4s.ics",
		Google: GoogleConfig{
			RedirectURL: "http://127.0.0.1:8085/",
			CalendarID:  "primary",
			TokenFile:   "token.json",
		},
	}
}

// Normalize fills missing values with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.LoginURL == "" {
		c.LoginURL = def.LoginURL
	}
	if c.APIBase == "" {
		c.APIBase = def.APIBase
	}
	if c.Origin == "" {
		c.Origin = def.Origin
	}
	if c.TimeZone == "" {
		c.TimeZone = def.TimeZone
	}
	if c.SyncSchedule == "" {
		c.SyncSchedule = def.SyncSchedule
	}
	if c.ExportPath == "" {
		c.ExportPath = def.ExportPath
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = def.Google.RedirectURL
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = def.Google.CalendarID
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = def.Google.TokenFile
	}
}

// Load reads the YAML file at path. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			return cfg, Save(path, cfg)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, pkgerrors.Wrapf(err, "parsing %s", path)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg *Config) error {
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

	tmp, err := os.CreateTemp(dir, ".g4s-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
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

// Init is the one-time bootstrap: it loads a .env file next to the config
// if present, then the config itself, then applies environment overrides.
func Init(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.Wrapf(err, "loading %s", envFile)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	cfg.Google.TokenFile = besideConfig(path, cfg.Google.TokenFile)
	cfg.ExportPath = besideConfig(path, cfg.ExportPath)
	return cfg, nil
}

// besideConfig resolves a relative file name against the directory holding
// the config file.
func besideConfig(configFile, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(configFile), name)
}

// Package config loads settings from an optional .env file, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	BackendFirestore = "firestore"
	BackendDatastore = "datastore"
	BackendMemory    = "memory"
)

type Config struct {
	Port            string        `yaml:"port"`
	StoreBackend    string        `yaml:"store_backend"`
	ProjectID       string        `yaml:"project_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Collection      string        `yaml:"collection"`
	Locale          string        `yaml:"locale"`
	TimeZone        string        `yaml:"time_zone"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	LineChannelToken  string `yaml:"line_channel_token"`
	LineChannelSecret string `yaml:"line_channel_secret"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Port:            "8080",
		StoreBackend:    BackendFirestore,
		Collection:      "tasks",
		Locale:          "en",
		TimeZone:        "Local",
		LogLevel:        "info",
		LogFormat:       "console",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PORT":                 &c.Port,
		"STORE_BACKEND":        &c.StoreBackend,
		"GOOGLE_CLOUD_PROJECT": &c.ProjectID,
		"CREDENTIALS_FILE":     &c.CredentialsFile,
		"TASKS_COLLECTION":     &c.Collection,
		"COUNTDOWN_LOCALE":     &c.Locale,
		"TIME_ZONE":            &c.TimeZone,
		"LOG_LEVEL":            &c.LogLevel,
		"LOG_FORMAT":           &c.LogFormat,
		"LINE_CHANNEL_TOKEN":   &c.LineChannelToken,
		"LINE_CHANNEL_SECRET":  &c.LineChannelSecret,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate checks that the settings can be used to start the server.
func (c *Config) Validate() error {
	var errs []error

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendFirestore, BackendDatastore:
		if c.ProjectID == "" {
			errs = append(errs, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the %s backend", c.StoreBackend))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}

	switch strings.ToLower(c.Locale) {
	case "en", "id":
	default:
		errs = append(errs, fmt.Errorf("unknown locale %q", c.Locale))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if (c.LineChannelToken == "") != (c.LineChannelSecret == "") {
		errs = append(errs, errors.New("LINE_CHANNEL_TOKEN and LINE_CHANNEL_SECRET must be set together"))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	return errors.Join(errs...)
}

// Location resolves TimeZone. Deadlines without a zone are read in it.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// LineEnabled reports whether the LINE webhook should be served.
func (c *Config) LineEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// Package config loads and validates cdrive YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
package config

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	BaseURL     string `yaml:"base_url"`
}

// StorageConfig holds blob store and quota settings.
type StorageConfig struct {
	Dir            string `yaml:"dir"`
	DefaultQuotaMB int64  `yaml:"default_quota_mb"`
}

// Config mirrors the cdrive.yaml schema.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
}

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	c.DB.Path = strings.TrimSpace(c.DB.Path)
	c.Storage.Dir = strings.TrimSpace(c.Storage.Dir)
	c.HTTP.BaseURL = strings.TrimRight(strings.TrimSpace(c.HTTP.BaseURL), "/")
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DB.Path == "" {
		c.DB.Path = "./data/cdrive.db"
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8420
	}
	if c.HTTP.MaxUploadMB == 0 {
		c.HTTP.MaxUploadMB = 512
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data/blobs"
	}
	if c.Storage.DefaultQuotaMB == 0 {
		// 8 GiB, the stock per-user quota.
		c.Storage.DefaultQuotaMB = 8192
	}
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	if c.DB.Path == "" {
		return errors.New("db.path is required")
	}
	if c.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if c.Storage.DefaultQuotaMB < 0 {
		return errors.New("storage.default_quota_mb is invalid")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	if c.HTTP.MaxUploadMB < 1 || c.HTTP.MaxUploadMB > 102400 {
		return errors.New("http.max_upload_mb is invalid")
	}
	return nil
}

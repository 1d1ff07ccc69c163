// Package config reads the optional comprasetl.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/comprasetl/pkg/comprasetl"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is looked up in the working directory.
const ConfigFileName = "comprasetl.yaml"

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
}

type LoadConfig struct {
	Table            string `yaml:"table"`
	TimestampColumn  string `yaml:"timestamp_column"`
	BatchSize        int    `yaml:"batch_size"`
	ConflictPolicy   string `yaml:"conflict_policy"`
	Schema           string `yaml:"schema"`
	Timeout          string `yaml:"timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
}

type PathsConfig struct {
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
}

type ProjectConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	Load       LoadConfig       `yaml:"load"`
	Paths      PathsConfig      `yaml:"paths"`
}

// Load reads ConfigFileName from dir. Malformed YAML or durations are
// configuration errors.
func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", configPath, comprasetl.ErrInvalidConfig, err)
	}
	if _, err := parseDuration(cfg.Load.Timeout); err != nil {
		return nil, fmt.Errorf("%s: load.timeout: %w", configPath, err)
	}
	if _, err := parseDuration(cfg.Load.StatementTimeout); err != nil {
		return nil, fmt.Errorf("%s: load.statement_timeout: %w", configPath, err)
	}
	return &cfg, nil
}

// TimeoutOr returns load.timeout, or def when unset.
func (c *ProjectConfig) TimeoutOr(def time.Duration) time.Duration {
	if c == nil {
		return def
	}
	if d, _ := parseDuration(c.Load.Timeout); d > 0 {
		return d
	}
	return def
}

// StatementTimeoutOr returns load.statement_timeout, or def when unset.
func (c *ProjectConfig) StatementTimeoutOr(def time.Duration) time.Duration {
	if c == nil {
		return def
	}
	if d, _ := parseDuration(c.Load.StatementTimeout); d > 0 {
		return d
	}
	return def
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, comprasetl.ErrInvalidConfig)
	}
	return d, nil
}

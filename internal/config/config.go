// Package config provides configuration loading and structs for the rmeta server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/rmeta/internal/extract"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Extract ExtractConfig `yaml:"extract"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	OutputDir   string   `yaml:"output_dir"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// ExtractConfig holds the default extraction limits. Pointers distinguish an
// explicit 0 (root only, no content) from an unset value.
type ExtractConfig struct {
	Handler              string `yaml:"handler"`
	MaxEmbeddedResources *int   `yaml:"max_embedded_resources"`
	WriteLimit           *int   `yaml:"write_limit"`
	StopOnWriteLimit     *bool  `yaml:"stop_on_write_limit"`
	Digest               string `yaml:"digest"`
}

// StorageConfig holds the result cache location. An empty path disables the cache.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ErrInvalid is wrapped by Validate.
var ErrInvalid = errors.New("invalid config")

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != "" {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}
	cfg.Watch.OutputDir = expandPath(cfg.Watch.OutputDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the server section and the extraction defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("%w: server.max_upload_bytes must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Extract.Handler) {
	case "", "xml", "html", "text", "txt", "ignore":
	default:
		return fmt.Errorf("%w: extract.handler %q", ErrInvalid, c.Extract.Handler)
	}
	if err := c.ExtractDefaults().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ExtractDefaults converts the extract section to an extraction config.
func (c *Config) ExtractDefaults() extract.Config {
	out := extract.DefaultConfig()
	out.Handler = extract.ParseHandlerMode(c.Extract.Handler)
	if c.Extract.MaxEmbeddedResources != nil {
		out.MaxEmbedded = *c.Extract.MaxEmbeddedResources
	}
	if c.Extract.WriteLimit != nil {
		out.WriteLimit = *c.Extract.WriteLimit
	}
	if c.Extract.StopOnWriteLimit != nil {
		out.StopOnWriteLimit = *c.Extract.StopOnWriteLimit
	}
	out.Digest = strings.ToLower(c.Extract.Digest)
	return out
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

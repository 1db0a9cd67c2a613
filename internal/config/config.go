// Package config loads the console configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/tinysa/internal/device"
	"github.com/banshee-data/tinysa/internal/transport"
)

// Defaults for settings the file leaves unset.
const (
	DefaultTimeout     = device.DefaultTimeout
	DefaultHistoryFile = ".tinysa_history"

	// DefaultInitialCommand is sent as soon as the console connects.
	DefaultInitialCommand = "help"
)

// Config is the console configuration. Every field is optional: the Get*
// methods supply defaults for anything the file leaves out, and command-line
// flags override both.
type Config struct {
	// Device selection
	Port           *string `json:"port,omitempty"`
	Timeout        *string `json:"timeout,omitempty"`           // duration string like "10ms"
	MaxResponse    *string `json:"max_response_time,omitempty"` // duration string; empty means unbounded
	InitialCommand *string `json:"initial_command,omitempty"`

	// Line settings
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"`

	// Storage and debugging
	Database    *string `json:"database,omitempty"`
	DebugListen *string `json:"debug_listen,omitempty"`
	HistoryFile *string `json:"history_file,omitempty"`

	// Preset verification
	StrictPresets *bool `json:"strict_presets,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be at most 1 MiB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	for name, value := range map[string]*string{"timeout": c.Timeout, "max_response_time": c.MaxResponse} {
		if value == nil || *value == "" {
			continue
		}
		d, err := time.ParseDuration(*value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}

	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}
	return nil
}

// GetPort returns the configured port name, or "" to search by USB identity.
func (c *Config) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return *c.Port
}

// GetTimeout returns the per-read timeout.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, DefaultTimeout)
}

// GetMaxResponseTime returns the bound on a single response; zero means
// unbounded.
func (c *Config) GetMaxResponseTime() time.Duration {
	return parseDuration(c.MaxResponse, 0)
}

// GetInitialCommand returns the command run before the first prompt. An
// explicit empty string goes straight to the prompt.
func (c *Config) GetInitialCommand() string {
	if c.InitialCommand == nil {
		return DefaultInitialCommand
	}
	return *c.InitialCommand
}

// PortOptions returns the line settings. Unset values are left zero for
// transport.PortOptions.Normalize to fill in.
func (c *Config) PortOptions() transport.PortOptions {
	var opts transport.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetDatabase returns the transcript database path, or "" when transcripts
// are not kept.
func (c *Config) GetDatabase() string {
	if c.Database == nil {
		return ""
	}
	return *c.Database
}

// GetDebugListen returns the debug HTTP listen address, or "" when disabled.
func (c *Config) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}

// GetHistoryFile returns the line-editor history path.
func (c *Config) GetHistoryFile() string {
	if c.HistoryFile == nil {
		return DefaultHistoryFile
	}
	return *c.HistoryFile
}

// GetStrictPresets reports whether checksum mismatches fail verification.
func (c *Config) GetStrictPresets() bool {
	if c.StrictPresets == nil {
		return false
	}
	return *c.StrictPresets
}

func parseDuration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// Package config provides configuration loading and management for the autosave daemon.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables read by the daemon
	EnvPrefix = "THV_AUTOSAVE"

	// DefaultName is the instance name used when none is configured
	DefaultName = "default"

	// DefaultControlAddress is the loopback address of the control API
	DefaultControlAddress = "127.0.0.1:8090"

	// DefaultStatusDir is the directory holding per-instance status files
	DefaultStatusDir = "./data/status"

	// DefaultNiceness is the niceness requested while a privilege grant is held
	DefaultNiceness = -5

	// DefaultRetryInterval is the periodic save interval used while the last save failed
	DefaultRetryInterval = 10 * time.Second
)

const (
	// PersistTypeFile copies a working file to its save destination
	PersistTypeFile = "file"

	// PersistTypeCommand delegates each pass to a hook command
	PersistTypeCommand = "command"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Name identifies the saved instance in status files, logs and metrics.
	// Defaults to "default" if not specified
	Name string `yaml:"name,omitempty"`

	// Persist configures what a save pass does
	Persist PersistConfig `yaml:"persist"`

	// Privilege configures the elevated execution class requested during saves
	Privilege *PrivilegeConfig `yaml:"privilege,omitempty"`

	// Autosave configures periodic save requests and kill handling
	Autosave *AutosaveConfig `yaml:"autosave,omitempty"`

	// Control configures the local control API
	Control *ControlConfig `yaml:"control,omitempty"`

	// Status configures where save status is recorded
	Status *StatusConfig `yaml:"status,omitempty"`

	// Telemetry configures tracing and metrics
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// PersistConfig selects exactly one persist backend
type PersistConfig struct {
	// Timeout bounds a single save pass (e.g., "30s"). Empty means unbounded
	Timeout string `yaml:"timeout,omitempty"`

	File    *FilePersistConfig    `yaml:"file,omitempty"`
	Command *CommandPersistConfig `yaml:"command,omitempty"`
}

// FilePersistConfig defines a file snapshot backend
type FilePersistConfig struct {
	// Source is the working file that is snapshotted on each pass
	Source string `yaml:"source"`

	// Destination is the saved copy, replaced atomically
	Destination string `yaml:"destination"`
}

// CommandPersistConfig defines a hook command backend
type CommandPersistConfig struct {
	// Args is the command and its arguments
	Args []string `yaml:"args"`

	// UnloadedExitCode is the exit status the hook uses to report that the
	// component it saves is gone. Zero disables the mapping
	UnloadedExitCode int `yaml:"unloadedExitCode,omitempty"`
}

// PrivilegeConfig defines the privilege grant settings
type PrivilegeConfig struct {
	// Enabled requests a grant at the start of each save worker
	Enabled bool `yaml:"enabled"`

	// Niceness is the niceness applied while the grant is held
	Niceness *int `yaml:"niceness,omitempty"`

	// ShieldSignals also ignores hangup and job-control stop signals while the grant is held
	ShieldSignals bool `yaml:"shieldSignals,omitempty"`
}

// AutosaveConfig defines periodic saving
type AutosaveConfig struct {
	// Interval between periodic save requests (e.g., "5m"). Empty disables the ticker
	Interval string `yaml:"interval,omitempty"`

	// RetryInterval replaces Interval while the last save failed (e.g., "10s").
	// Defaults to 10s; ignored when not shorter than Interval
	RetryInterval string `yaml:"retryInterval,omitempty"`

	// KillTimeout bounds how long a kill waits for an in-flight save. Empty waits indefinitely
	KillTimeout string `yaml:"killTimeout,omitempty"`
}

// ControlConfig defines the control API listener
type ControlConfig struct {
	// Address is the host:port the control API listens on
	Address string `yaml:"address,omitempty"`
}

// StatusConfig defines status persistence
type StatusConfig struct {
	// Dir is the base directory for per-instance status files
	Dir string `yaml:"dir,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetName returns the instance name, using "default" if not specified
func (c *Config) GetName() string {
	if c.Name == "" {
		return DefaultName
	}
	return c.Name
}

// GetPersistType returns the configured persist backend type
func (c *Config) GetPersistType() string {
	if c.Persist.File != nil {
		return PersistTypeFile
	}
	if c.Persist.Command != nil {
		return PersistTypeCommand
	}
	return ""
}

// GetPassTimeout returns the per-pass timeout, or zero when unbounded
func (c *Config) GetPassTimeout() time.Duration {
	return parseDurationOrZero(c.Persist.Timeout)
}

// GetInterval returns the periodic save interval, or zero when disabled
func (c *Config) GetInterval() time.Duration {
	if c.Autosave == nil {
		return 0
	}
	return parseDurationOrZero(c.Autosave.Interval)
}

// GetRetryInterval returns the interval used after a failed save, using the default if not specified
func (c *Config) GetRetryInterval() time.Duration {
	if c.Autosave == nil || c.Autosave.RetryInterval == "" {
		return DefaultRetryInterval
	}
	return parseDurationOrZero(c.Autosave.RetryInterval)
}

// GetKillTimeout returns the kill wait bound, or zero when unbounded
func (c *Config) GetKillTimeout() time.Duration {
	if c.Autosave == nil {
		return 0
	}
	return parseDurationOrZero(c.Autosave.KillTimeout)
}

// GetControlAddress returns the control API address, using the loopback default if not specified
func (c *Config) GetControlAddress() string {
	if c.Control == nil || c.Control.Address == "" {
		return DefaultControlAddress
	}
	return c.Control.Address
}

// GetStatusDir returns the status base directory, using the default if not specified
func (c *Config) GetStatusDir() string {
	if c.Status == nil || c.Status.Dir == "" {
		return DefaultStatusDir
	}
	return c.Status.Dir
}

// PrivilegeEnabled reports whether privilege grants are requested
func (c *Config) PrivilegeEnabled() bool {
	return c.Privilege != nil && c.Privilege.Enabled
}

// GetNiceness returns the niceness requested while a grant is held
func (c *PrivilegeConfig) GetNiceness() int {
	if c == nil || c.Niceness == nil {
		return DefaultNiceness
	}
	return *c.Niceness
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validatePersist(&c.Persist); err != nil {
		return err
	}

	if err := c.validatePrivilege(); err != nil {
		return err
	}

	if c.Autosave != nil {
		if err := validateDuration(c.Autosave.Interval, "autosave.interval"); err != nil {
			return err
		}
		if err := validateDuration(c.Autosave.RetryInterval, "autosave.retryInterval"); err != nil {
			return err
		}
		if err := validateDuration(c.Autosave.KillTimeout, "autosave.killTimeout"); err != nil {
			return err
		}
	}

	if c.Control != nil && c.Control.Address != "" {
		if _, _, err := net.SplitHostPort(c.Control.Address); err != nil {
			return fmt.Errorf("control.address must be host:port: %w", err)
		}
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// validatePersist ensures exactly one backend is configured and it is complete
func validatePersist(p *PersistConfig) error {
	if err := validateDuration(p.Timeout, "persist.timeout"); err != nil {
		return err
	}

	if p.File == nil && p.Command == nil {
		return fmt.Errorf("persist: one of file or command configuration must be specified")
	}
	if p.File != nil && p.Command != nil {
		return fmt.Errorf("persist: only one of file or command configuration may be specified")
	}

	if p.File != nil {
		if p.File.Source == "" {
			return fmt.Errorf("persist.file.source is required")
		}
		if p.File.Destination == "" {
			return fmt.Errorf("persist.file.destination is required")
		}
		if filepath.Clean(p.File.Source) == filepath.Clean(p.File.Destination) {
			return fmt.Errorf("persist.file.destination must differ from persist.file.source")
		}
	}

	if p.Command != nil {
		if len(p.Command.Args) == 0 || p.Command.Args[0] == "" {
			return fmt.Errorf("persist.command.args is required")
		}
		if p.Command.UnloadedExitCode < 0 || p.Command.UnloadedExitCode > 255 {
			return fmt.Errorf("persist.command.unloadedExitCode must be between 0 and 255, got %d",
				p.Command.UnloadedExitCode)
		}
	}

	return nil
}

func (c *Config) validatePrivilege() error {
	if c.Privilege == nil || c.Privilege.Niceness == nil {
		return nil
	}
	if n := *c.Privilege.Niceness; n < -20 || n > 19 {
		return fmt.Errorf("privilege.niceness must be between -20 and 19, got %d", n)
	}
	return nil
}

// validateDuration accepts an empty value or a positive duration string
func validateDuration(value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

func parseDurationOrZero(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

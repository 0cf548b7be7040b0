package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete JeredMgr configuration
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Git       GitConfig       `mapstructure:"git"`
	Container ContainerConfig `mapstructure:"container"`
	Service   ServiceConfig   `mapstructure:"service"`
	Confirm   ConfirmConfig   `mapstructure:"confirm"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PathsConfig controls where JeredMgr stores records and artifacts
type PathsConfig struct {
	// ManagedDir is the single directory holding all project records,
	// artifacts and artifact backups. Supports ~ expansion.
	ManagedDir string `mapstructure:"managed_dir"`
	// CredentialFile is the location of the global credential file.
	// If empty, defaults to <config dir>/credential.
	CredentialFile string `mapstructure:"credential_file"`
	// InstallDir is the manager's own install directory used by self-update.
	// If empty, it is derived from the running executable's location.
	InstallDir string `mapstructure:"install_dir"`
}

// GitConfig controls the git update engine
type GitConfig struct {
	// Binary is the git executable to invoke (default: "git")
	Binary string `mapstructure:"binary"`
	// TrustedHosts are the only hosts a credential may be embedded for.
	// Credentialed URLs for any other host fail closed.
	TrustedHosts []string `mapstructure:"trusted_hosts"`
	// DefaultRemote is the remote name used for upstream comparison (default: "origin")
	DefaultRemote string `mapstructure:"default_remote"`
}

// ContainerConfig controls the container-stack backend
type ContainerConfig struct {
	// ComposeCommand is the compose invocation, split on spaces
	// (default: "docker compose"; set to "docker-compose" for the standalone binary)
	ComposeCommand string `mapstructure:"compose_command"`
	// DescriptorName is the conventional compose file name looked up in a
	// project's own path (default: "docker-compose.yml")
	DescriptorName string `mapstructure:"descriptor_name"`
	// BuildFileName is the source build file descriptors may be synthesized
	// from (default: "Dockerfile")
	BuildFileName string `mapstructure:"build_file_name"`
}

// ServiceConfig controls the init-system service backend
type ServiceConfig struct {
	// SystemctlPath is the path to the systemctl binary (default: "systemctl")
	SystemctlPath string `mapstructure:"systemctl_path"`
	// JournalctlPath is the path to the journalctl binary (default: "journalctl")
	JournalctlPath string `mapstructure:"journalctl_path"`
}

// ConfirmConfig controls the start/stop state confirmation poll
type ConfirmConfig struct {
	// IntervalMs is the fixed poll interval in milliseconds (default: 100)
	IntervalMs int `mapstructure:"interval_ms"`
	// MaxAttempts is the probe cap; 0 means a single immediate check (default: 10)
	MaxAttempts int `mapstructure:"max_attempts"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Interval returns the confirmation poll interval as a time.Duration
func (c *ConfirmConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ResolveManagedDir returns the managed directory with ~ expanded.
// A relative path is resolved against the current working directory.
func (p *PathsConfig) ResolveManagedDir() string {
	path := p.ManagedDir
	if path == "" {
		return filepath.Join(ConfigDir(), "projects")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return path
}

// ResolveCredentialFile returns the global credential file location.
func (p *PathsConfig) ResolveCredentialFile() string {
	if p.CredentialFile != "" {
		return p.CredentialFile
	}
	return filepath.Join(ConfigDir(), "credential")
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ManagedDir:     "", // Empty means <config dir>/projects
			CredentialFile: "",
			InstallDir:     "",
		},
		Git: GitConfig{
			Binary:        "git",
			TrustedHosts:  []string{"github.com", "gitlab.com"},
			DefaultRemote: "origin",
		},
		Container: ContainerConfig{
			ComposeCommand: "docker compose",
			DescriptorName: "docker-compose.yml",
			BuildFileName:  "Dockerfile",
		},
		Service: ServiceConfig{
			SystemctlPath:  "systemctl",
			JournalctlPath: "journalctl",
		},
		Confirm: ConfirmConfig{
			IntervalMs:  100,
			MaxAttempts: 10,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("paths.managed_dir", defaults.Paths.ManagedDir)
	viper.SetDefault("paths.credential_file", defaults.Paths.CredentialFile)
	viper.SetDefault("paths.install_dir", defaults.Paths.InstallDir)

	viper.SetDefault("git.binary", defaults.Git.Binary)
	viper.SetDefault("git.trusted_hosts", defaults.Git.TrustedHosts)
	viper.SetDefault("git.default_remote", defaults.Git.DefaultRemote)

	viper.SetDefault("container.compose_command", defaults.Container.ComposeCommand)
	viper.SetDefault("container.descriptor_name", defaults.Container.DescriptorName)
	viper.SetDefault("container.build_file_name", defaults.Container.BuildFileName)

	viper.SetDefault("service.systemctl_path", defaults.Service.SystemctlPath)
	viper.SetDefault("service.journalctl_path", defaults.Service.JournalctlPath)

	viper.SetDefault("confirm.interval_ms", defaults.Confirm.IntervalMs)
	viper.SetDefault("confirm.max_attempts", defaults.Confirm.MaxAttempts)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jeredmgr")
	}
	// Fall back to ~/.config/jeredmgr
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jeredmgr"
	}
	return filepath.Join(home, ".config", "jeredmgr")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

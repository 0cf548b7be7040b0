package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Git.Binary != "git" {
		t.Errorf("Git.Binary = %q, want %q", cfg.Git.Binary, "git")
	}
	if cfg.Git.DefaultRemote != "origin" {
		t.Errorf("Git.DefaultRemote = %q, want %q", cfg.Git.DefaultRemote, "origin")
	}
	if len(cfg.Git.TrustedHosts) == 0 {
		t.Error("Git.TrustedHosts should not be empty by default")
	}

	if cfg.Container.ComposeCommand != "docker compose" {
		t.Errorf("Container.ComposeCommand = %q, want %q", cfg.Container.ComposeCommand, "docker compose")
	}
	if cfg.Container.DescriptorName != "docker-compose.yml" {
		t.Errorf("Container.DescriptorName = %q, want %q", cfg.Container.DescriptorName, "docker-compose.yml")
	}

	if cfg.Service.SystemctlPath != "systemctl" {
		t.Errorf("Service.SystemctlPath = %q, want %q", cfg.Service.SystemctlPath, "systemctl")
	}

	if cfg.Confirm.IntervalMs != 100 {
		t.Errorf("Confirm.IntervalMs = %d, want 100", cfg.Confirm.IntervalMs)
	}
	if cfg.Confirm.MaxAttempts != 10 {
		t.Errorf("Confirm.MaxAttempts = %d, want 10", cfg.Confirm.MaxAttempts)
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() should validate cleanly, got: %v", ValidationErrors(errs))
	}
}

func TestConfirmInterval(t *testing.T) {
	cfg := ConfirmConfig{IntervalMs: 250}
	if got := cfg.Interval(); got != 250*time.Millisecond {
		t.Errorf("Interval() = %v, want 250ms", got)
	}
}

func TestValidateConfirm(t *testing.T) {
	cfg := Default()
	cfg.Confirm.IntervalMs = 0
	cfg.Confirm.MaxAttempts = -1

	errs := cfg.Validate()
	if len(errs) != 2 {
		t.Fatalf("got %d validation errors, want 2: %v", len(errs), ValidationErrors(errs))
	}
}

func TestValidateTrustedHosts(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"github.com", false},
		{"git.example.org", false},
		{"https://github.com", true},
		{"github.com/path", true},
		{"user@github.com", true},
		{"github.com:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := Default()
			cfg.Git.TrustedHosts = []string{tt.host}
			errs := cfg.Validate()
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Validate() with host %q: errs = %v, wantErr %v", tt.host, errs, tt.wantErr)
			}
		})
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("got %d validation errors, want 1", len(errs))
	}
	if errs[0].Field != "logging.level" {
		t.Errorf("error field = %q, want logging.level", errs[0].Field)
	}

	// Level names are case-insensitive.
	cfg.Logging.Level = "Debug"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("mixed-case level should validate, got: %v", ValidationErrors(errs))
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count header", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("Error() = %q, want first error", msg)
	}

	single := ValidationErrors{errs[0]}
	if single.Error() != errs[0].Error() {
		t.Error("single-element ValidationErrors should format as the bare error")
	}
}

func TestResolveManagedDirTilde(t *testing.T) {
	t.Setenv("HOME", "/home/operator")

	p := PathsConfig{ManagedDir: "~/projects"}
	if got := p.ResolveManagedDir(); got != "/home/operator/projects" {
		t.Errorf("ResolveManagedDir() = %q, want ~ expanded", got)
	}
}

func TestResolveManagedDirDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	p := PathsConfig{}
	if got := p.ResolveManagedDir(); got != "/tmp/xdg/jeredmgr/projects" {
		t.Errorf("ResolveManagedDir() = %q, want XDG default", got)
	}
}

func TestResolveCredentialFileDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	p := PathsConfig{}
	if got := p.ResolveCredentialFile(); got != "/tmp/xdg/jeredmgr/credential" {
		t.Errorf("ResolveCredentialFile() = %q, want XDG default", got)
	}
}

// Package config handles configuration loading and validation for shadelock.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete locker configuration.
//
// The configuration is read exactly once at startup. There is no hot
// reload: re-reading attacker-writable state while the input grabs are
// held would widen the attack surface for no benefit.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Display selects the X display and target screen.
	Display DisplayConfig `toml:"display" json:"display" yaml:"display"`

	// Colors configures the overlay feedback palette.
	Colors ColorConfig `toml:"colors" json:"colors" yaml:"colors"`

	// Auth selects and configures the credential backend.
	Auth AuthConfig `toml:"auth" json:"auth" yaml:"auth"`

	// Input bounds the credential accumulator.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Session configures session-level behavior.
	Session SessionConfig `toml:"session" json:"session" yaml:"session"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DisplayConfig selects the X display and screen.
type DisplayConfig struct {
	// Name is the X display string. Empty means the DISPLAY environment
	// variable.
	Name string `toml:"name" json:"name" yaml:"name"`

	// Screen is the target screen index. -1 selects the connection's
	// default screen.
	Screen int `toml:"screen" json:"screen" yaml:"screen"`
}

// ColorConfig holds the feedback palette as "#rrggbb" strings.
type ColorConfig struct {
	// Idle is the base overlay color, shown while no input is buffered.
	Idle string `toml:"idle" json:"idle" yaml:"idle"`

	// Typing is shown from the first buffered character until submit or
	// clear.
	Typing string `toml:"typing" json:"typing" yaml:"typing"`

	// Failure is flashed after a rejected attempt.
	Failure string `toml:"failure" json:"failure" yaml:"failure"`

	// Success is flashed before the session unlocks.
	Success string `toml:"success" json:"success" yaml:"success"`

	// HoldMs is how long a Success/Failure color stays visible, in
	// milliseconds.
	HoldMs int `toml:"hold_ms" json:"hold_ms" yaml:"hold_ms"`
}

// Hold returns the result hold duration.
func (c ColorConfig) Hold() time.Duration {
	return time.Duration(c.HoldMs) * time.Millisecond
}

// AuthConfig selects the credential backend.
type AuthConfig struct {
	// Backend is "shadow" (local hash comparison, requires privilege to
	// read the shadow database) or "pam" (delegate to the PAM stack).
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// PAMService is the PAM service name used by the pam backend.
	PAMService string `toml:"pam_service" json:"pam_service" yaml:"pam_service"`

	// User overrides the account to authenticate. Empty means the
	// invoking user from the process environment.
	User string `toml:"user" json:"user" yaml:"user"`
}

// InputConfig bounds the credential accumulator.
type InputConfig struct {
	// MaxLength is the credential buffer capacity in characters. Pushing
	// past it resets the buffer to the newest character only.
	MaxLength int `toml:"max_length" json:"max_length" yaml:"max_length"`
}

// SessionConfig configures session-level behavior.
type SessionConfig struct {
	// UnlockAfterSec force-ends the session after this many seconds.
	// 0 disables it. This is a demonstration/liveness fallback, not part
	// of the security path.
	UnlockAfterSec int `toml:"unlock_after_sec" json:"unlock_after_sec" yaml:"unlock_after_sec"`

	// Logind enables announcing the lock state to systemd-logind and
	// honoring the session Unlock signal.
	Logind bool `toml:"logind" json:"logind" yaml:"logind"`

	// LockMemory mlocks the process address space so the credential
	// buffer cannot reach swap.
	LockMemory bool `toml:"lock_memory" json:"lock_memory" yaml:"lock_memory"`
}

// UnlockAfter returns the hard-timeout duration, 0 when disabled.
func (c SessionConfig) UnlockAfter() time.Duration {
	return time.Duration(c.UnlockAfterSec) * time.Second
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Display: DisplayConfig{
			Name:   "",
			Screen: -1,
		},
		Colors: ColorConfig{
			Idle:    "#000000",
			Typing:  "#005577",
			Failure: "#cc3333",
			Success: "#2e7d32",
			HoldMs:  500,
		},
		Auth: AuthConfig{
			Backend:    "shadow",
			PAMService: "login",
			User:       "",
		},
		Input: InputConfig{
			MaxLength: 255,
		},
		Session: SessionConfig{
			UnlockAfterSec: 0,
			Logind:         true,
			LockMemory:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultPath returns the default config file location under
// XDG_CONFIG_HOME.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, _ := os.UserHomeDir()
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "shadelock", "config.toml")
}

// ApplyEnvOverrides applies SHADELOCK_* environment variables on top of
// the loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SHADELOCK_DISPLAY"); v != "" {
		c.Display.Name = v
	}
	if v := os.Getenv("SHADELOCK_AUTH_BACKEND"); v != "" {
		c.Auth.Backend = v
	}
	if v := os.Getenv("SHADELOCK_PAM_SERVICE"); v != "" {
		c.Auth.PAMService = v
	}
	if v := os.Getenv("SHADELOCK_USER"); v != "" {
		c.Auth.User = v
	}
	if v := os.Getenv("SHADELOCK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SHADELOCK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SHADELOCK_UNLOCK_AFTER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.UnlockAfterSec = n
		}
	}
}

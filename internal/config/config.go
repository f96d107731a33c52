package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
)

// WorkspaceName is the fixed folder name of the scratch workspace under the
// system temp directory. It must not change between releases.
const WorkspaceName = "shelfkey.workspace"

// Config holds all application configuration.
type Config struct {
	// Vendor data location
	Vendor VendorConfig `json:"vendor" mapstructure:"vendor"`

	// Scratch workspace
	Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`

	// Frontend bridge
	Bridge BridgeConfig `json:"bridge" mapstructure:"bridge"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// VendorConfig locates the vendor data root.
type VendorConfig struct {
	Root         string `json:"root" mapstructure:"root"`                              // Vendor data root
	DeviceSecret string `json:"device_secret,omitempty" mapstructure:"device_secret"` // Secret the global key is derived from
}

// WorkspaceConfig for the decrypted artifact directory.
type WorkspaceConfig struct {
	Dir string `json:"dir" mapstructure:"dir"` // Empty = <system temp>/WorkspaceName
}

// BridgeConfig for the command bridge.
type BridgeConfig struct {
	Listen  string `json:"listen" mapstructure:"listen"`   // Loopback address for the websocket endpoint
	Workers int    `json:"workers" mapstructure:"workers"` // Background pool size
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Dir: DefaultWorkspaceDir(),
		},
		Bridge: BridgeConfig{
			Listen:  "127.0.0.1:7317",
			Workers: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultWorkspaceDir returns the system temp directory joined with WorkspaceName.
func DefaultWorkspaceDir() string {
	return filepath.Join(os.TempDir(), WorkspaceName)
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Workspace.Dir == "" {
		return errors.New("workspace.dir is required")
	}

	if c.Bridge.Workers <= 0 {
		return errors.New("bridge.workers must be positive")
	}

	host, _, err := net.SplitHostPort(c.Bridge.Listen)
	if err != nil {
		return fmt.Errorf("invalid bridge.listen: %w", err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("bridge.listen must be a loopback address: %s", c.Bridge.Listen)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Vendor.DeviceSecret != "" {
		out.Vendor.DeviceSecret = "********"
	}
	return &out
}

// EnsureDirectories creates the parent directory of the log file.
func (c *Config) EnsureDirectories() error {
	if c.Log.File == "" {
		return nil
	}

	dir := filepath.Dir(c.Log.File)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	return nil
}

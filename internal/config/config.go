package config

import (
	"net"
	"strconv"
)

// TokenMode controls whether the connection-token cookie is issued on root
// page renders.
type TokenMode string

const (
	TokenModeNone      TokenMode = "none"
	TokenModeOptional  TokenMode = "optional"
	TokenModeMandatory TokenMode = "mandatory"
)

// BuildMode selects which shell variant the bootstrap handler serves.
type BuildMode string

const (
	BuildModeDev   BuildMode = "dev"
	BuildModeBuilt BuildMode = "built"
)

// Config represents the complete workbench server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workbench WorkbenchConfig `yaml:"workbench"`
	Token     TokenConfig     `yaml:"token"`
	Gallery   GalleryConfig   `yaml:"gallery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Admin     AdminConfig     `yaml:"admin"`
}

// ServerConfig defines the main HTTP listener
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WorkbenchConfig carries the client bootstrap environment. All values are
// read once at startup and immutable afterwards.
type WorkbenchConfig struct {
	AppRoot               string    `yaml:"app_root"`   // directory holding the client bundles and HTML shells
	BuildMode             BuildMode `yaml:"build_mode"` // "dev" serves the development shell variant
	SmokeTest             bool      `yaml:"smoke_test"` // set when driven by the integration-test driver
	WorkspaceURI          string    `yaml:"workspace_uri"`
	FolderURI             string    `yaml:"folder_uri"`
	EnableSync            bool      `yaml:"enable_sync"`
	DisableWorkspaceTrust bool      `yaml:"disable_workspace_trust"`
	AuthToken             string    `yaml:"auth_token"` // dev-only ephemeral auth session token
}

// TokenConfig defines the connection-token settings
type TokenConfig struct {
	Mode  TokenMode `yaml:"mode"`
	Value string    `yaml:"value"`
}

// GalleryConfig points the resource gateway at its trusted upstream. An empty
// template leaves the gateway disabled.
type GalleryConfig struct {
	ResourceURLTemplate string `yaml:"resource_url_template"`
}

// LoggingConfig defines logger output settings (file rotation powered by
// lumberjack when a file is set).
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AdminConfig defines the optional admin listener (metrics, health)
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ListenAddr returns the main listener address in host:port form.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// DefaultConfig returns a configuration with sane defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 9888,
		},
		Workbench: WorkbenchConfig{
			BuildMode: BuildModeBuilt,
		},
		Token: TokenConfig{
			Mode: TokenModeNone,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:9889",
		},
	}
}

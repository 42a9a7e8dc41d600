package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}

	if cfg.Workbench.AppRoot == "" {
		return fmt.Errorf("workbench app_root is required")
	}

	switch cfg.Workbench.BuildMode {
	case BuildModeDev, BuildModeBuilt:
	default:
		return fmt.Errorf("invalid build mode %q (expected dev or built)", cfg.Workbench.BuildMode)
	}

	switch cfg.Token.Mode {
	case TokenModeNone:
	case TokenModeOptional, TokenModeMandatory:
		if cfg.Token.Value == "" {
			return fmt.Errorf("token mode %q requires a token value", cfg.Token.Mode)
		}
	default:
		return fmt.Errorf("invalid token mode %q (expected none, optional or mandatory)", cfg.Token.Mode)
	}

	if raw := cfg.Gallery.ResourceURLTemplate; raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid gallery resource_url_template: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("gallery resource_url_template %q must carry a scheme and authority", raw)
		}
	}

	if cfg.Admin.Enabled && cfg.Admin.Addr == "" {
		return fmt.Errorf("admin listener enabled without an address")
	}

	return nil
}

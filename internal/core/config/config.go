// Package config handles configuration loading and validation for stackup.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// ConduitURL is the base URL of the review service, e.g.
	// https://phab.example.com.
	ConduitURL string `yaml:"conduit_url"`
	// BugzillaURL is the base URL of the bug tracker.
	BugzillaURL string `yaml:"bugzilla_url"`
	// Repository is the callsign of the repository revisions target.
	Repository string `yaml:"repository"`
	GitPath    string `yaml:"git_path"`
	// ArcrcPath points at the token store; defaults to ~/.arcrc.
	ArcrcPath string `yaml:"arcrc_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitPath:   "git",
		ArcrcPath: defaultArcrcPath(),
	}
}

func defaultArcrcPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".arcrc")
}

// Load reads configuration from the given path. A missing file returns
// defaults; the required fields are then caught by Validate.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.GitPath == "" {
		c.GitPath = defaults.GitPath
	}
	if c.ArcrcPath == "" {
		c.ArcrcPath = defaults.ArcrcPath
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.ConduitURL == "" {
		return fmt.Errorf("conduit_url is required")
	}
	if err := validHTTPURL(c.ConduitURL); err != nil {
		return fmt.Errorf("conduit_url: %w", err)
	}

	if c.BugzillaURL == "" {
		return fmt.Errorf("bugzilla_url is required")
	}
	if err := validHTTPURL(c.BugzillaURL); err != nil {
		return fmt.Errorf("bugzilla_url: %w", err)
	}

	if c.Repository == "" {
		return fmt.Errorf("repository callsign is required")
	}
	if c.GitPath == "" {
		return fmt.Errorf("git_path cannot be empty")
	}

	return nil
}

func validHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

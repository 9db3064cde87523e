package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adammathes/wikicli/wikimd"
	"gopkg.in/yaml.v3"
)

// config holds the settings shared by all commands. Values come from the
// YAML file, then the environment, then command-line flags.
type config struct {
	BaseURL          string        `yaml:"base_url"`
	Cookie           string        `yaml:"cookie"`
	CacheDir         string        `yaml:"cache_dir"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	Proxy            string        `yaml:"proxy"`
	MaxResponseSize  int64         `yaml:"max_response_size"`
	ImageConcurrency int           `yaml:"image_concurrency"`
}

func defaultConfig() *config {
	return &config{
		BaseURL:          wikimd.DefaultBaseOrigin,
		Timeout:          30 * time.Second,
		UserAgent:        defaultUA,
		MaxResponseSize:  128 * 1024 * 1024,
		ImageConcurrency: 4,
	}
}

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		value := getenv(string(parts[1]))
		if value == "" && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// resolveConfigPath returns the config file to read, or "" when none exists.
// Search order: explicit path > WIKICLI_CONFIG > $XDG_CONFIG_HOME/wikicli/config.yaml
// > ~/.config/wikicli/config.yaml. Only the first two must exist.
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if envPath := getenv("WIKICLI_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("WIKICLI_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	dir := getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		dir = filepath.Join(home, ".config")
	}
	p := filepath.Join(dir, "wikicli", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return "", nil
}

// loadConfig reads the config file (if any) and applies environment
// overrides. A missing cookie only produces a warning.
func loadConfig(path string, getenv func(string) string) (*config, error) {
	cfg := defaultConfig()

	resolved, err := resolveConfigPath(path, getenv)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = interpolateEnv(data, getenv)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", resolved, err)
		}
	}

	if v := getenv("WIKI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("WIKI_COOKIE"); v != "" {
		cfg.Cookie = v
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir(getenv)
	}
	return cfg, nil
}

// defaultCacheDir is $XDG_CACHE_HOME/WikiMCP, or ~/.cache/WikiMCP.
func defaultCacheDir(getenv func(string) string) string {
	base := getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "WikiMCP")
}

// validate checks the settings that every command depends on.
func (c *config) validate() error {
	var errs []string
	if _, err := parseBaseURL(c.BaseURL); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid timeout: %s", c.Timeout))
	}
	if c.MaxResponseSize < 0 {
		errs = append(errs, "max_response_size must not be negative")
	}
	if c.ImageConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("invalid image_concurrency: %d (must be at least 1)", c.ImageConcurrency))
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			errs = append(errs, fmt.Sprintf("invalid proxy: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// parseBaseURL accepts an http(s) origin, with or without a trailing slash.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base_url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base_url %q: must be an absolute http(s) URL", raw)
	}
	return u, nil
}

// origin returns scheme://host of u without path or trailing slash.
func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

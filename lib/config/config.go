// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/poller"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/survey"
)

// EnvVar names the environment variable Load reads the path from.
const EnvVar = "SPATIALTRACE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Delivery modes.
const (
	// DeliveryHTTP posts each batch to the ingest endpoint.
	DeliveryHTTP = "http"
	// DeliveryStream puts batches on the session's data stream.
	DeliveryStream = "stream"
)

// Config is the agent configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// AppKey identifies the application to the backend.
	AppKey string `yaml:"app_key"`

	API      APIConfig       `yaml:"api"`
	Delivery DeliveryConfig  `yaml:"delivery"`
	Poller   PollerConfig    `yaml:"poller"`
	UserMeta xr.UserMetadata `yaml:"user_meta"`
	Survey   SurveyConfig    `yaml:"survey"`
	Log      LogConfig       `yaml:"log"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	API      *APIConfig      `yaml:"api,omitempty"`
	Delivery *DeliveryConfig `yaml:"delivery,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// APIConfig locates the analytics backend.
type APIConfig struct {
	// Origin is the scheme and host of the backend, e.g.
	// https://api.example.com. Paths are fixed.
	Origin string `yaml:"origin"`

	// Timeout bounds each HTTP request. Default: 10s
	Timeout string `yaml:"timeout"`
}

// DeliveryConfig selects how batches reach the backend.
type DeliveryConfig struct {
	// Mode is "http" or "stream". Default: stream
	Mode string `yaml:"mode"`

	// StreamEndpoint is the websocket URL of the data stream gateway.
	// Required in stream mode.
	StreamEndpoint string `yaml:"stream_endpoint"`

	// Compression is "none", "zstd" or "lz4". HTTP delivery supports
	// none and zstd. Default: zstd
	Compression string `yaml:"compression"`

	// IdentityFile holds age identities for sealed stream credentials.
	IdentityFile string `yaml:"identity_file"`

	// SharedSecretFile holds the secret for nonce:ciphertext sealed
	// credentials.
	SharedSecretFile string `yaml:"shared_secret_file"`
}

// PollerConfig configures the sampling loop.
type PollerConfig struct {
	// Interval between samples, clamped to 100ms..1s. Default: 500ms
	Interval string `yaml:"interval"`

	// InactivityInterval ends a session after this long without
	// movement. Default: 120s
	InactivityInterval string `yaml:"inactivity_interval"`

	// ShowSurvey enables the automatic rating prompt. Default: true
	ShowSurvey *bool `yaml:"show_survey"`

	// SurveyTheme is "light" or "dark". Default: light
	SurveyTheme string `yaml:"survey_theme"`
}

// SurveyConfig configures the rating prompt.
type SurveyConfig struct {
	// LogPath remembers which apps were already rated. Empty keeps
	// the record in memory only.
	LogPath string `yaml:"log_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. It exists to give every
// field a sensible value before the file is loaded, not as a fallback:
// the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	showSurvey := true

	return &Config{
		Environment: Development,
		API: APIConfig{
			Origin:  "http://localhost:8790",
			Timeout: "10s",
		},
		Delivery: DeliveryConfig{
			Mode:        DeliveryStream,
			Compression: string(compress.Zstd),
		},
		Poller: PollerConfig{
			Interval:           "500ms",
			InactivityInterval: "120s",
			ShowSurvey:         &showSurvey,
			SurveyTheme:        string(survey.Light),
		},
		Survey: SurveyConfig{
			LogPath: filepath.Join(homeDir, ".cache", "spatialtrace", "survey.cbor"),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from the file named by SPATIALTRACE_CONFIG.
// There is no fallback when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// section for the configured environment, and expands ${VAR} and
// ${VAR:-default} in paths and URLs.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.API != nil {
		if overrides.API.Origin != "" {
			c.API.Origin = overrides.API.Origin
		}
		if overrides.API.Timeout != "" {
			c.API.Timeout = overrides.API.Timeout
		}
	}

	if overrides.Delivery != nil {
		if overrides.Delivery.Mode != "" {
			c.Delivery.Mode = overrides.Delivery.Mode
		}
		if overrides.Delivery.StreamEndpoint != "" {
			c.Delivery.StreamEndpoint = overrides.Delivery.StreamEndpoint
		}
		if overrides.Delivery.Compression != "" {
			c.Delivery.Compression = overrides.Delivery.Compression
		}
		if overrides.Delivery.IdentityFile != "" {
			c.Delivery.IdentityFile = overrides.Delivery.IdentityFile
		}
		if overrides.Delivery.SharedSecretFile != "" {
			c.Delivery.SharedSecretFile = overrides.Delivery.SharedSecretFile
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.API.Origin = expandVars(c.API.Origin, vars)
	c.Delivery.StreamEndpoint = expandVars(c.Delivery.StreamEndpoint, vars)
	c.Delivery.IdentityFile = expandVars(c.Delivery.IdentityFile, vars)
	c.Delivery.SharedSecretFile = expandVars(c.Delivery.SharedSecretFile, vars)
	c.Survey.LogPath = expandVars(c.Survey.LogPath, vars)
	c.AppKey = expandVars(c.AppKey, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, looking in
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.AppKey == "" {
		errs = append(errs, errors.New("app_key is required"))
	}

	if origin, err := url.Parse(c.API.Origin); err != nil || origin.Host == "" {
		errs = append(errs, fmt.Errorf("api.origin must be an absolute URL, got %q", c.API.Origin))
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	}

	algorithm, err := compress.Parse(c.Delivery.Compression)
	if err != nil {
		errs = append(errs, fmt.Errorf("delivery.compression: %w", err))
	}
	switch c.Delivery.Mode {
	case DeliveryHTTP:
		if algorithm == compress.LZ4 {
			errs = append(errs, errors.New("delivery.compression lz4 is only supported in stream mode"))
		}
	case DeliveryStream:
		if endpoint, err := url.Parse(c.Delivery.StreamEndpoint); err != nil ||
			(endpoint.Scheme != "ws" && endpoint.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("delivery.stream_endpoint must be a ws:// or wss:// URL in stream mode, got %q",
				c.Delivery.StreamEndpoint))
		}
	default:
		errs = append(errs, fmt.Errorf("delivery.mode must be one of: %v", []string{DeliveryHTTP, DeliveryStream}))
	}

	if _, err := c.PollerOptions(); err != nil {
		errs = append(errs, err)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Timeout returns the parsed API timeout.
func (c *Config) Timeout() time.Duration {
	timeout, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return timeout
}

// PollerOptions maps the poller section onto poller.Options.
func (c *Config) PollerOptions() (poller.Options, error) {
	options := poller.DefaultOptions()
	var errs []error

	if c.Poller.Interval != "" {
		interval, err := time.ParseDuration(c.Poller.Interval)
		if err != nil {
			errs = append(errs, fmt.Errorf("poller.interval: %w", err))
		}
		options.PollInterval = poller.ClampPollInterval(interval)
	}
	if c.Poller.InactivityInterval != "" {
		inactivity, err := time.ParseDuration(c.Poller.InactivityInterval)
		if err != nil || inactivity <= 0 {
			errs = append(errs, fmt.Errorf("poller.inactivity_interval must be a positive duration, got %q",
				c.Poller.InactivityInterval))
		}
		options.InactivityInterval = inactivity
	}
	if c.Poller.ShowSurvey != nil {
		options.ShowSurvey = *c.Poller.ShowSurvey
	}
	theme, err := survey.ParseTheme(c.Poller.SurveyTheme)
	if err != nil {
		errs = append(errs, fmt.Errorf("poller.survey_theme: %w", err))
	}
	options.SurveyTheme = theme
	options.UserMeta = c.UserMeta

	if len(errs) > 0 {
		return poller.Options{}, errors.Join(errs...)
	}
	return options, nil
}

// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/poller"
	"github.com/spatialtrace/spatialtrace/lib/survey"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Delivery.Mode != DeliveryStream {
		t.Errorf("expected delivery.mode=stream, got %s", cfg.Delivery.Mode)
	}
	if cfg.Poller.ShowSurvey == nil || !*cfg.Poller.ShowSurvey {
		t.Error("expected show_survey=true by default")
	}

	options, err := cfg.PollerOptions()
	if err != nil {
		t.Fatalf("PollerOptions() failed: %v", err)
	}
	if options.PollInterval != poller.DefaultPollInterval {
		t.Errorf("expected interval=%v, got %v", poller.DefaultPollInterval, options.PollInterval)
	}
	if options.InactivityInterval != poller.DefaultInactivityInterval {
		t.Errorf("expected inactivity=%v, got %v", poller.DefaultInactivityInterval, options.InactivityInterval)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SPATIALTRACE_CONFIG not set, got nil")
	}
	expectedMsg := "SPATIALTRACE_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	path := writeConfig(t, "spatialtrace.yaml", `
environment: staging
app_key: demo-app
api:
  origin: https://api.example.com
poller:
  interval: 250ms
  show_survey: false
  survey_theme: dark
user_meta:
  scene_name: lobby
  params:
    build: 42
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.AppKey != "demo-app" {
		t.Errorf("expected app_key=demo-app, got %s", cfg.AppKey)
	}
	if cfg.API.Origin != "https://api.example.com" {
		t.Errorf("expected origin from file, got %s", cfg.API.Origin)
	}
	// Unset fields keep their defaults.
	if cfg.API.Timeout != "10s" {
		t.Errorf("expected default timeout, got %s", cfg.API.Timeout)
	}

	options, err := cfg.PollerOptions()
	if err != nil {
		t.Fatalf("PollerOptions() failed: %v", err)
	}
	if options.PollInterval != 250*time.Millisecond {
		t.Errorf("expected interval=250ms, got %v", options.PollInterval)
	}
	if options.ShowSurvey {
		t.Error("expected show_survey=false")
	}
	if options.SurveyTheme != survey.Dark {
		t.Errorf("expected dark theme, got %s", options.SurveyTheme)
	}
	if options.UserMeta.SceneName != "lobby" {
		t.Errorf("expected scene_name=lobby, got %q", options.UserMeta.SceneName)
	}
	if options.UserMeta.Params["build"] != 42 {
		t.Errorf("expected params.build=42, got %v", options.UserMeta.Params["build"])
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "spatialtrace.jsonc", `{
  // comments and trailing commas are accepted
  "app_key": "json-app",
  "delivery": {
    "mode": "http",
    "compression": "none",
  },
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.AppKey != "json-app" {
		t.Errorf("expected app_key=json-app, got %s", cfg.AppKey)
	}
	if cfg.Delivery.Mode != DeliveryHTTP || cfg.Delivery.Compression != "none" {
		t.Errorf("unexpected delivery section: %+v", cfg.Delivery)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "spatialtrace.yaml", `
environment: production
app_key: demo-app
api:
  origin: http://localhost:8790
delivery:
  stream_endpoint: ws://localhost:8791/stream
log:
  level: debug
production:
  api:
    origin: https://api.example.com
  delivery:
    stream_endpoint: wss://stream.example.com/v1
  log:
    level: warn
staging:
  log:
    level: error
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.API.Origin != "https://api.example.com" {
		t.Errorf("expected production origin, got %s", cfg.API.Origin)
	}
	if cfg.Delivery.StreamEndpoint != "wss://stream.example.com/v1" {
		t.Errorf("expected production endpoint, got %s", cfg.Delivery.StreamEndpoint)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected production log level, got %s", cfg.Log.Level)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("SPATIALTRACE_TEST_KEY", "from-env")
	t.Setenv("HOME", "/home/tester")

	path := writeConfig(t, "spatialtrace.yaml", `
app_key: ${SPATIALTRACE_TEST_KEY}
api:
  origin: ${SPATIALTRACE_TEST_ORIGIN:-https://fallback.example.com}
survey:
  log_path: ${HOME}/.cache/survey.cbor
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.AppKey != "from-env" {
		t.Errorf("expected app_key=from-env, got %s", cfg.AppKey)
	}
	if cfg.API.Origin != "https://fallback.example.com" {
		t.Errorf("expected default origin, got %s", cfg.API.Origin)
	}
	if cfg.Survey.LogPath != "/home/tester/.cache/survey.cbor" {
		t.Errorf("expected expanded log path, got %s", cfg.Survey.LogPath)
	}
}

func TestExpandVars(t *testing.T) {
	vars := map[string]string{"ROOT": "/srv"}
	tests := []struct {
		input string
		want  string
	}{
		{"${ROOT}/data", "/srv/data"},
		{"${MISSING:-fallback}", "fallback"},
		{"${MISSING}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.AppKey = "demo-app"
		cfg.Delivery.StreamEndpoint = "wss://stream.example.com/v1"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing app key", func(c *Config) { c.AppKey = "" }, "app_key is required"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"relative origin", func(c *Config) { c.API.Origin = "/api" }, "api.origin"},
		{"bad timeout", func(c *Config) { c.API.Timeout = "soon" }, "api.timeout"},
		{"unknown mode", func(c *Config) { c.Delivery.Mode = "carrier-pigeon" }, "delivery.mode"},
		{"lz4 over http", func(c *Config) {
			c.Delivery.Mode = DeliveryHTTP
			c.Delivery.Compression = "lz4"
		}, "only supported in stream mode"},
		{"http stream endpoint", func(c *Config) {
			c.Delivery.StreamEndpoint = "https://stream.example.com"
		}, "delivery.stream_endpoint"},
		{"bad compression", func(c *Config) { c.Delivery.Compression = "gzip" }, "delivery.compression"},
		{"bad interval", func(c *Config) { c.Poller.Interval = "often" }, "poller.interval"},
		{"zero inactivity", func(c *Config) { c.Poller.InactivityInterval = "0s" }, "poller.inactivity_interval"},
		{"bad theme", func(c *Config) { c.Poller.SurveyTheme = "neon" }, "poller.survey_theme"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("expected error containing %q, got %v", test.want, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"app_key", "delivery.stream_endpoint", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestPollerOptions_ClampsInterval(t *testing.T) {
	cfg := Default()
	cfg.Poller.Interval = "5s"
	options, err := cfg.PollerOptions()
	if err != nil {
		t.Fatalf("PollerOptions() failed: %v", err)
	}
	if options.PollInterval != poller.MaxPollInterval {
		t.Errorf("expected clamp to %v, got %v", poller.MaxPollInterval, options.PollInterval)
	}
}

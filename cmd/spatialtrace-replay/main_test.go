// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/spatialtrace/spatialtrace/lib/config"
	"github.com/spatialtrace/spatialtrace/lib/sealed"
	"github.com/spatialtrace/spatialtrace/lib/testutil"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
	"github.com/spatialtrace/spatialtrace/transport"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"--trace", "walk.jsonl", "--loop", "--survey", "off"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.tracePath != "walk.jsonl" || !f.loop || f.survey != "off" {
		t.Errorf("unexpected flags: %+v", f)
	}

	for _, args := range [][]string{
		{},
		{"--trace", "walk.jsonl", "--survey", "maybe"},
		{"--trace", "walk.jsonl", "extra"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("parseFlags(%q) should fail", args)
		}
	}

	if f, err := parseFlags([]string{"--version"}); err != nil || !f.showVer {
		t.Errorf("--version without --trace: flags=%+v err=%v", f, err)
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spatialtrace.yaml")
	content := `
app_key: from-file
delivery:
  mode: http
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(flags{configPath: path, appKey: "from-flag", survey: "off"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.AppKey != "from-flag" {
		t.Errorf("app key: got %q", cfg.AppKey)
	}
	if cfg.Poller.ShowSurvey == nil || *cfg.Poller.ShowSurvey {
		t.Error("--survey off should disable the prompt")
	}

	_, err = loadConfig(flags{configPath: path, appKey: ""})
	if err != nil {
		t.Fatalf("file app key should validate: %v", err)
	}
}

func TestNewOpenerHTTP(t *testing.T) {
	cfg := config.Default()
	cfg.AppKey = "demo"
	cfg.Delivery.Mode = config.DeliveryHTTP
	api := xrapi.New(cfg.API.Origin, http.DefaultClient, testutil.Logger(t))

	opener, err := newOpener(cfg, api, testutil.Logger(t))
	if err != nil {
		t.Fatalf("newOpener: %v", err)
	}
	if _, ok := opener.(*transport.HTTPOpener); !ok {
		t.Errorf("expected HTTPOpener, got %T", opener)
	}
}

func TestLoadKeyring(t *testing.T) {
	keyring, err := loadKeyring(config.DeliveryConfig{})
	if err != nil || keyring != nil {
		t.Fatalf("empty delivery: keyring=%v err=%v", keyring, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	identityPath := filepath.Join(dir, "identity.txt")
	secretPath := filepath.Join(dir, "secret")
	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secretPath, []byte("correct horse\n"), 0600); err != nil {
		t.Fatal(err)
	}

	keyring, err = loadKeyring(config.DeliveryConfig{IdentityFile: identityPath, SharedSecretFile: secretPath})
	if err != nil {
		t.Fatalf("loadKeyring: %v", err)
	}

	sealedAge, err := sealed.SealAge("AKIDEXAMPLE", identity.Recipient().String())
	if err != nil {
		t.Fatal(err)
	}
	if plaintext, err := keyring.Open(sealedAge); err != nil || plaintext != "AKIDEXAMPLE" {
		t.Errorf("age value: got %q, %v", plaintext, err)
	}

	sealedShared, err := sealed.SealShared("secret-key", []byte("correct horse"))
	if err != nil {
		t.Fatal(err)
	}
	if plaintext, err := keyring.Open(sealedShared); err != nil || plaintext != "secret-key" {
		t.Errorf("shared value: got %q, %v", plaintext, err)
	}

	_, err = loadKeyring(config.DeliveryConfig{IdentityFile: filepath.Join(dir, "missing")})
	if err == nil || !strings.Contains(err.Error(), "identity file") {
		t.Errorf("missing identity file: got %v", err)
	}
}

// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/config"
	"github.com/spatialtrace/spatialtrace/lib/sealed"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
	"github.com/spatialtrace/spatialtrace/transport"
)

// newOpener builds the transport selected by the delivery section.
func newOpener(cfg *config.Config, api *xrapi.Client, logger *slog.Logger) (transport.Opener, error) {
	algorithm, err := compress.Parse(cfg.Delivery.Compression)
	if err != nil {
		return nil, err
	}
	if cfg.Delivery.Mode == config.DeliveryHTTP {
		return &transport.HTTPOpener{Client: api, AppKey: cfg.AppKey, Compression: algorithm}, nil
	}

	keyring, err := loadKeyring(cfg.Delivery)
	if err != nil {
		return nil, err
	}
	return &transport.StreamOpener{
		Endpoint:    cfg.Delivery.StreamEndpoint,
		Keyring:     keyring,
		Compression: algorithm,
		Logger:      logger,
	}, nil
}

// loadKeyring reads the identity and shared secret files. A delivery
// section with neither returns a nil keyring, which accepts only
// unsealed grants.
func loadKeyring(delivery config.DeliveryConfig) (*sealed.Keyring, error) {
	var identities []age.Identity
	if delivery.IdentityFile != "" {
		file, err := os.Open(delivery.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("opening identity file: %w", err)
		}
		defer file.Close()
		identities, err = sealed.ParseIdentities(file)
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", delivery.IdentityFile, err)
		}
	}

	var secret []byte
	if delivery.SharedSecretFile != "" {
		data, err := os.ReadFile(delivery.SharedSecretFile)
		if err != nil {
			return nil, fmt.Errorf("reading shared secret: %w", err)
		}
		secret = []byte(strings.TrimSpace(string(data)))
	}

	if len(identities) == 0 && len(secret) == 0 {
		return nil, nil
	}
	return sealed.NewKeyring(identities, secret), nil
}

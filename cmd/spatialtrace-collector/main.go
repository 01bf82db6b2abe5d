// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// spatialtrace-collector serves the in-memory analytics backend for
// local runs of spatialtrace-replay. It issues stream grants, accepts
// HTTP and websocket batches, and logs every delivery it accepts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/spatialtrace/spatialtrace/lib/collector"
	"github.com/spatialtrace/spatialtrace/lib/config"
	"github.com/spatialtrace/spatialtrace/lib/logging"
	"github.com/spatialtrace/spatialtrace/lib/process"
	"github.com/spatialtrace/spatialtrace/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		listen           string
		recipients       []string
		sharedSecretFile string
		logLevel         string
		showVersion      bool
	)
	flagSet := pflag.NewFlagSet("spatialtrace-collector", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "127.0.0.1:8790", "address to serve on")
	flagSet.StringSliceVar(&recipients, "seal-recipient", nil, "age recipient to seal grant keys to (repeatable)")
	flagSet.StringVar(&sharedSecretFile, "shared-secret-file", "", "seal grant keys with this shared secret instead")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion {
		version.Print("spatialtrace-collector")
		return nil
	}

	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("--log-level: %w", err)}
	}
	logger := logging.New(level)

	var sharedSecret []byte
	if sharedSecretFile != "" {
		data, err := os.ReadFile(sharedSecretFile)
		if err != nil {
			return fmt.Errorf("reading shared secret: %w", err)
		}
		sharedSecret = []byte(strings.TrimSpace(string(data)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := collector.New(collector.Options{
		SealRecipients: recipients,
		SharedSecret:   sharedSecret,
		Logger:         logger,
	})
	server, err := backend.Listen(listen)
	if err != nil {
		return err
	}

	go logDeliveries(ctx, backend, logger)

	logger.Info("collector listening",
		"origin", server.URL(),
		"stream_endpoint", "ws://"+server.Address()+collector.StreamRoute,
		"sealed", len(recipients) > 0 || len(sharedSecret) > 0,
	)
	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("shutting down",
		"records", len(backend.Records()),
		"surveys", len(backend.Surveys()),
	)
	return nil
}

func logDeliveries(ctx context.Context, backend *collector.Collector, logger *slog.Logger) {
	deliveries := backend.Deliveries()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-deliveries:
			logger.Info("batch accepted",
				"via", delivery.Via,
				"session_id", delivery.SessionID,
				"records", len(delivery.Records),
				"digest", delivery.Digest,
			)
		}
	}
}

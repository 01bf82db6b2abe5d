// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the agent build. Values are injected with
// -ldflags, for example:
//
//	go build -ldflags "-X github.com/spatialtrace/spatialtrace/lib/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time.
var (
	Version = "0.1.0-dev"
	Commit  = "unknown"
)

// Info returns the --version line.
func Info() string {
	return fmt.Sprintf("%s (%s, %s %s/%s)", Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the User-Agent the agent sends to the backend.
func UserAgent() string {
	return fmt.Sprintf("spatialtrace-agent/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Print writes the --version line for binary to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}

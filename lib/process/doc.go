// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers shared by the spatialtrace
// binaries: reporting a fatal error before or after the structured
// logger exists, and mapping errors to exit codes.
package process

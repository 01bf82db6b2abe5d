// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the agent configuration.
//
// Configuration is loaded from a single file specified by either the
// SPATIALTRACE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no discovery and no fallback file.
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML.
//
// The file may carry environment-specific sections (development,
// staging, production) that override the api, delivery and log
// sections when [Config].Environment matches.
//
// ${HOME} and ${VAR:-default} patterns are expanded in the app key,
// URLs and file paths after loading.
//
// Key exports:
//
//   - [Config] -- master struct with API, Delivery, Poller and Survey
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.PollerOptions] -- maps the poller section onto the poller
package config

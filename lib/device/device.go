// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package device describes the client a session runs on: the device
// class derived from the user agent, and the operating system of the
// host process.
package device

import (
	"context"
	"regexp"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// Device classes reported in SystemInfo.DeviceType.
const (
	Mobile  = "mobile"
	Tablet  = "tablet"
	Desktop = "desktop"
)

var (
	mobilePattern = regexp.MustCompile(`Mobile|iP(hone|od|ad)|Android|BlackBerry|IEMobile|Kindle|NetFront|Silk-Accelerated|(hpw|web)OS|Fennec|Minimo|Opera M(obi|ini)|Blazer|Dolfin|Dolphin|Skyfire|Zune`)
	tabletPattern = regexp.MustCompile(`(?i)ipad|tablet|kindle|playbook|silk|puffin`)
	puffinPhone   = regexp.MustCompile(`(?i)puffin.*(IP|AP|WP)`)
)

// Classify returns the device class for a user agent. An empty user
// agent is a native desktop host.
func Classify(userAgent string) string {
	if mobilePattern.MatchString(userAgent) {
		return Mobile
	}
	if isTablet(userAgent) {
		return Tablet
	}
	return Desktop
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	if strings.Contains(lower, "android") && !strings.Contains(lower[strings.Index(lower, "android"):], "mobile") {
		return true
	}
	if i := strings.Index(lower, "windows"); i >= 0 {
		rest := lower[i:]
		if !strings.Contains(rest, "phone") && strings.Contains(rest, "touch") {
			return true
		}
	}
	if !tabletPattern.MatchString(userAgent) {
		return false
	}
	if strings.Contains(lower, "puffin") && puffinPhone.MatchString(userAgent) {
		return tabletPattern.MatchString(strings.ReplaceAll(lower, "puffin", ""))
	}
	return true
}

// hostInfo is replaced in tests.
var hostInfo = host.InfoWithContext

// Environment supplies the client metadata attached to every record.
type Environment struct {
	UserAgent string
	PagePath  string
	PageQuery string

	system xr.SystemInfo
}

// Detect builds an Environment for the running host. Host lookup
// failures leave the operating system fields empty.
func Detect(ctx context.Context, userAgent, pagePath, pageQuery string) *Environment {
	environment := &Environment{
		UserAgent: userAgent,
		PagePath:  pagePath,
		PageQuery: pageQuery,
		system:    xr.SystemInfo{DeviceType: Classify(userAgent)},
	}
	if info, err := hostInfo(ctx); err == nil && info != nil {
		environment.system.OperatingSystemName = firstNonEmpty(info.Platform, info.OS)
		environment.system.OperatingSystemVersion = firstNonEmpty(info.PlatformVersion, info.KernelVersion)
		environment.system.DeviceModel = info.KernelArch
		environment.system.DeviceName = info.VirtualizationSystem
	}
	return environment
}

// Metadata returns the environment fields of a record's user metadata.
func (e *Environment) Metadata() xr.UserMetadata {
	system := e.system
	return xr.UserMetadata{
		UserAgent:  e.UserAgent,
		PagePath:   e.PagePath,
		PageQuery:  e.PageQuery,
		SystemInfo: &system,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

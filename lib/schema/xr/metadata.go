// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package xr

// SystemInfo describes the client device.
type SystemInfo struct {
	DeviceModel            string `json:"deviceModel,omitempty"`
	DeviceName             string `json:"deviceName,omitempty"`
	DeviceType             string `json:"deviceType,omitempty"`
	OperatingSystemName    string `json:"operatingSystemName,omitempty"`
	OperatingSystemVersion string `json:"operatingSystemVersion,omitempty"`
}

// UserMetadata describes the client the session runs on. Every field
// is optional.
type UserMetadata struct {
	IPAddress    string         `json:"ipAddress,omitempty" yaml:"ip_address"`
	Geolocation  string         `json:"geolocation,omitempty" yaml:"geolocation"`
	UserAgent    string         `json:"userAgent,omitempty" yaml:"user_agent"`
	PagePath     string         `json:"pagePath,omitempty" yaml:"page_path"`
	PageQuery    string         `json:"pageQuery,omitempty" yaml:"page_query"`
	SceneName    string         `json:"sceneName,omitempty" yaml:"scene_name"`
	GameLocation string         `json:"gameLocation,omitempty" yaml:"game_location"`
	SystemInfo   *SystemInfo    `json:"systemInfo,omitempty" yaml:"-"`
	Params       map[string]any `json:"params,omitempty" yaml:"params"`
}

// Merge returns m overlaid with every non-empty field of o. Params are
// merged key by key.
func (m UserMetadata) Merge(o UserMetadata) UserMetadata {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	out := UserMetadata{
		IPAddress:    pick(m.IPAddress, o.IPAddress),
		Geolocation:  pick(m.Geolocation, o.Geolocation),
		UserAgent:    pick(m.UserAgent, o.UserAgent),
		PagePath:     pick(m.PagePath, o.PagePath),
		PageQuery:    pick(m.PageQuery, o.PageQuery),
		SceneName:    pick(m.SceneName, o.SceneName),
		GameLocation: pick(m.GameLocation, o.GameLocation),
		SystemInfo:   m.SystemInfo,
	}
	if o.SystemInfo != nil {
		out.SystemInfo = o.SystemInfo
	}
	if len(m.Params)+len(o.Params) > 0 {
		out.Params = make(map[string]any, len(m.Params)+len(o.Params))
		for key, value := range m.Params {
			out.Params[key] = value
		}
		for key, value := range o.Params {
			out.Params[key] = value
		}
	}
	return out
}

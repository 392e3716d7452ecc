// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"net/url"
	"os"
	"strings"
)

// ResolveDomain normalizes the installation's configured public URL
// into the host string the portal uses to count activations. When no
// URL is configured it falls back to the OS hostname.
func ResolveDomain(configuredURL string) string {
	if configuredURL != "" {
		if host := hostFromURL(configuredURL); host != "" {
			return host
		}
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "localhost"
	}
	return strings.ToLower(hostname)
}

func hostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// Bare hosts parse with an empty Hostname, so give them a scheme.
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

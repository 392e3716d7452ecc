// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package update compares the running version against the latest
// version the license portal advertises in check responses.
package update

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Available reports whether latest is a newer release than current.
// Dev builds and unparsable versions never report an update.
func Available(current, latest string) bool {
	if current == "" || current == "dev" || latest == "" {
		return false
	}

	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false
	}
	next, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false
	}

	return next.GreaterThan(cur)
}

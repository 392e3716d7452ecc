// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"strings"
	"time"
)

// GracePeriodDays bounds how long a previously active license stays
// entitled while the portal is unreachable.
const GracePeriodDays = 7

const day = 24 * time.Hour

// Activations mirrors the portal's activation counters for this key.
type Activations struct {
	Limit uint `json:"limit"`
	Used  uint `json:"used"`
}

// Data is the structured license metadata returned by the portal.
// A nil ExpiresAt means a lifetime license.
type Data struct {
	Status        Status      `json:"status,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Activations   Activations `json:"activations"`
	Product       string      `json:"product,omitempty"`
	Package       string      `json:"package,omitempty"`
	LatestVersion string      `json:"latest_version,omitempty"`
}

// Record is the persisted local belief about the license. It is read
// and written only through Store; between operations the reconciler
// holds no state of its own.
type Record struct {
	Key            string     `json:"key"`
	Status         Status     `json:"status"`
	Data           *Data      `json:"data,omitempty"`
	LastCheckedAt  *time.Time `json:"lastCheckedAt,omitempty"`
	GraceStartedAt *time.Time `json:"graceStartedAt,omitempty"`
}

// IsValid reports whether the license currently entitles this
// installation to premium functionality.
func (r *Record) IsValid() bool {
	return r.Key != "" && r.Status == StatusActive
}

// IsExpired reports whether the license term has lapsed. Licenses
// without an expiry never expire.
func (r *Record) IsExpired(now time.Time) bool {
	if r.Data == nil || r.Data.ExpiresAt == nil {
		return false
	}
	return r.Data.ExpiresAt.Before(now)
}

// RemainingDays returns whole days left on the license term, clamped
// at zero. ok is false for lifetime licenses.
func (r *Record) RemainingDays(now time.Time) (days int, ok bool) {
	if r.Data == nil || r.Data.ExpiresAt == nil {
		return 0, false
	}
	left := r.Data.ExpiresAt.Sub(now)
	if left < 0 {
		return 0, true
	}
	return int(left / day), true
}

// InGracePeriod reports whether a network-error grace window is open,
// independent of the current status.
func (r *Record) InGracePeriod(now time.Time) bool {
	if r.GraceStartedAt == nil {
		return false
	}
	return !now.After(r.graceEnd())
}

// GraceDaysRemaining returns whole days, rounded up, until the open
// grace window closes. Zero when no window is open or it has elapsed.
func (r *Record) GraceDaysRemaining(now time.Time) int {
	if r.GraceStartedAt == nil {
		return 0
	}
	left := r.graceEnd().Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

func (r *Record) graceEnd() time.Time {
	return r.GraceStartedAt.Add(GracePeriodDays * day)
}

const maskRune = "•"

// MaskKey hides the middle of a license key for display and logs.
// Short keys are fully masked so nothing useful leaks from them.
func MaskKey(key string) string {
	n := len(key)
	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat(maskRune, n)
	case n <= 8:
		return key[:2] + strings.Repeat(maskRune, n-2)
	default:
		return key[:4] + strings.Repeat(maskRune, 4) + key[n-4:]
	}
}

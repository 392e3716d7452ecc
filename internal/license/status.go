// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import "strings"

// Status is the locally persisted belief about the license. The empty
// string is a valid initial value meaning no verdict has been recorded
// yet; it is distinct from every portal-reported status.
type Status string

const (
	StatusNone        Status = ""
	StatusActive      Status = "active"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
	StatusPaused      Status = "paused"
	StatusSuspended   Status = "suspended"
	StatusInvalid     Status = "invalid"
	StatusDomainLimit Status = "domain_limit"
)

// CanReactivate reports whether the license could become active again
// without purchasing a new key, for example after freeing up a domain
// slot or the portal lifting a suspension.
func (s Status) CanReactivate() bool {
	switch s {
	case StatusPaused, StatusSuspended, StatusDomainLimit, StatusInvalid:
		return true
	default:
		return false
	}
}

// NeedsRenewal reports whether only a renewal or a new key can restore
// entitlement.
func (s Status) NeedsRenewal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// ParseStatusFromMessage maps a portal rejection message to a status.
// The portal's 403 responses carry no machine-readable reason, so this
// pattern match is the documented fallback when the secondary lookup
// fails. The match order matters: expired > suspended > cancelled >
// paused, defaulting to suspended for anything unrecognized.
func ParseStatusFromMessage(message string) Status {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "expired"):
		return StatusExpired
	case strings.Contains(msg, "suspended"):
		return StatusSuspended
	case strings.Contains(msg, "cancelled"), strings.Contains(msg, "canceled"):
		return StatusCancelled
	case strings.Contains(msg, "paused"):
		return StatusPaused
	default:
		return StatusSuspended
	}
}

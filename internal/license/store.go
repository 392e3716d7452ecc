// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// StateStore is durable key/value storage for license state. Get
// returns the empty string without an error when the key is absent.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetDefault(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Fixed identifiers in the state store.
const (
	stateKeyLicenseKey   = "license_key"
	stateKeyStatus       = "license_status"
	stateKeyData         = "license_data"
	stateKeyLastChecked  = "license_last_checked"
	stateKeyGraceStarted = "license_grace_started"
)

// Store persists the Record through a StateStore. Its write methods
// encode the allowed write shapes: key and status always travel
// together, license data is cleared alongside the key or on any
// non-transient activation failure, and the grace marker has its own
// open/close lifecycle.
type Store struct {
	kv StateStore
}

// NewStore wraps a StateStore with typed license accessors.
func NewStore(kv StateStore) *Store {
	return &Store{kv: kv}
}

// Load reads the full persisted record. Absent fields come back as
// zero values; a fresh installation yields an empty record.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	rec := &Record{}

	key, err := s.kv.Get(ctx, stateKeyLicenseKey)
	if err != nil {
		return nil, errors.Wrap(err, "load license key")
	}
	rec.Key = key

	status, err := s.kv.GetDefault(ctx, stateKeyStatus, "")
	if err != nil {
		return nil, errors.Wrap(err, "load license status")
	}
	rec.Status = Status(status)

	raw, err := s.kv.Get(ctx, stateKeyData)
	if err != nil {
		return nil, errors.Wrap(err, "load license data")
	}
	if raw != "" {
		data := &Data{}
		if err := json.Unmarshal([]byte(raw), data); err != nil {
			return nil, errors.Wrap(err, "decode license data")
		}
		rec.Data = data
	}

	if rec.LastCheckedAt, err = s.loadTime(ctx, stateKeyLastChecked); err != nil {
		return nil, err
	}
	if rec.GraceStartedAt, err = s.loadTime(ctx, stateKeyGraceStarted); err != nil {
		return nil, err
	}

	return rec, nil
}

// SaveActivation records a successful activation or check: key, status
// and data are written together, the check timestamp is refreshed, and
// any open grace window is closed.
func (s *Store) SaveActivation(ctx context.Context, key string, status Status, data *Data, now time.Time) error {
	if err := s.setKeyAndStatus(ctx, key, status); err != nil {
		return err
	}
	if err := s.setData(ctx, data); err != nil {
		return err
	}
	if err := s.SetLastChecked(ctx, now); err != nil {
		return err
	}
	return s.clearGrace(ctx)
}

// SaveRejection records a definitive rejection: the attempted key is
// kept so the UI can show it, the resolved status is written with it,
// and stale data is replaced by whatever the portal reported (usually
// nothing).
func (s *Store) SaveRejection(ctx context.Context, key string, status Status, data *Data) error {
	if err := s.setKeyAndStatus(ctx, key, status); err != nil {
		return err
	}
	return s.setData(ctx, data)
}

// SetLastChecked records when the portal was last contacted, whether
// or not the call succeeded.
func (s *Store) SetLastChecked(ctx context.Context, t time.Time) error {
	return errors.Wrap(s.kv.Set(ctx, stateKeyLastChecked, t.UTC().Format(time.RFC3339)), "set last checked")
}

// OpenGrace marks the start of a network-error grace window. Only one
// window is ever open; callers check before opening.
func (s *Store) OpenGrace(ctx context.Context, t time.Time) error {
	return errors.Wrap(s.kv.Set(ctx, stateKeyGraceStarted, t.UTC().Format(time.RFC3339)), "open grace window")
}

// ExpireGrace performs the end-of-grace transition in one logical
// write: the status demotes to suspended and the marker clears. This
// is the only path where a network error alone changes the status.
func (s *Store) ExpireGrace(ctx context.Context) error {
	if err := s.kv.Set(ctx, stateKeyStatus, string(StatusSuspended)); err != nil {
		return errors.Wrap(err, "demote status after grace")
	}
	return s.clearGrace(ctx)
}

// Reset destroys the record entirely; used by Deactivate and before a
// fresh activation attempt replaces everything anyway.
func (s *Store) Reset(ctx context.Context) error {
	for _, key := range []string{
		stateKeyLicenseKey,
		stateKeyStatus,
		stateKeyData,
		stateKeyLastChecked,
		stateKeyGraceStarted,
	} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "reset state key %s", key)
		}
	}
	return nil
}

func (s *Store) setKeyAndStatus(ctx context.Context, key string, status Status) error {
	if err := s.kv.Set(ctx, stateKeyLicenseKey, key); err != nil {
		return errors.Wrap(err, "set license key")
	}
	return errors.Wrap(s.kv.Set(ctx, stateKeyStatus, string(status)), "set license status")
}

func (s *Store) setData(ctx context.Context, data *Data) error {
	if data == nil {
		return errors.Wrap(s.kv.Delete(ctx, stateKeyData), "clear license data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode license data")
	}
	return errors.Wrap(s.kv.Set(ctx, stateKeyData, string(raw)), "set license data")
}

func (s *Store) clearGrace(ctx context.Context) error {
	return errors.Wrap(s.kv.Delete(ctx, stateKeyGraceStarted), "clear grace window")
}

func (s *Store) loadTime(ctx context.Context, key string) (*time.Time, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load state key %s", key)
	}
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse state key %s", key)
	}
	return &t, nil
}

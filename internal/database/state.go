// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// StateStore persists small key/value state such as the license record
// and the admin credentials. Absent keys read as the empty string.
type StateStore struct {
	db *DB
}

func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.conn.QueryRowContext(ctx, "SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to read state key %q", key)
	}
	return value, nil
}

func (s *StateStore) GetDefault(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.conn.QueryRowContext(ctx, "SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return "", errors.Wrapf(err, "failed to read state key %q", key)
	}
	return value, nil
}

func (s *StateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return errors.Wrapf(err, "failed to write state key %q", key)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.conn.ExecContext(ctx, "DELETE FROM app_state WHERE key = ?", key)
	if err != nil {
		return errors.Wrapf(err, "failed to delete state key %q", key)
	}
	return nil
}

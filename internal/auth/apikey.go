// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

type APIKey struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// APIKeyStore manages API keys for programmatic access. Only the
// SHA-256 hash of a key is stored; the raw key is shown once at
// creation.
type APIKeyStore struct {
	db *sql.DB
}

func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

func hashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Create stores a new API key and returns it together with the raw
// key string.
func (s *APIKeyStore) Create(ctx context.Context, name string) (*APIKey, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", errors.Wrap(err, "failed to generate api key")
	}
	rawKey := hex.EncodeToString(raw)

	var key APIKey
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (key_hash, name) VALUES (?, ?)
		RETURNING id, name, created_at
	`, hashAPIKey(rawKey), name).Scan(&key.ID, &key.Name, &key.CreatedAt)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to store api key")
	}

	return &key, rawKey, nil
}

func (s *APIKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, last_used_at FROM api_keys ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list api keys")
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.Name, &key.CreatedAt, &key.LastUsedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan api key")
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

func (s *APIKeyStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete api key")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Validate checks a raw key and touches its last_used_at on success.
func (s *APIKeyStore) Validate(ctx context.Context, rawKey string) (bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx, "SELECT id FROM api_keys WHERE key_hash = ?", hashAPIKey(rawKey)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to validate api key")
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?", id); err != nil {
		return false, errors.Wrap(err, "failed to update api key usage")
	}
	return true, nil
}

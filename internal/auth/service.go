// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
)

const (
	sessionName          = "driftsync_session"
	adminPasswordHashKey = "admin_password_hash"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSetupIncomplete    = errors.New("admin password has not been set")
)

// StateStore is the slice of the key/value store the auth service
// needs. Absent keys read as the empty string.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Service authenticates the single admin account. The password hash
// lives in the state store, so there is no users table to manage.
type Service struct {
	states   StateStore
	sessions *sessions.CookieStore
}

func NewService(states StateStore, sessionSecret string) *Service {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Service{
		states:   states,
		sessions: store,
	}
}

func (s *Service) IsSetupComplete(ctx context.Context) (bool, error) {
	hash, err := s.states.Get(ctx, adminPasswordHashKey)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

func (s *Service) SetPassword(ctx context.Context, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}
	return s.states.Set(ctx, adminPasswordHashKey, hash)
}

func (s *Service) Login(ctx context.Context, password string) error {
	hash, err := s.states.Get(ctx, adminPasswordHashKey)
	if err != nil {
		return err
	}
	if hash == "" {
		return ErrSetupIncomplete
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return errors.Wrap(err, "failed to verify password")
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) CreateSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	return session.Save(r, w)
}

func (s *Service) IsAuthenticated(r *http.Request) bool {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	authenticated, ok := session.Values["authenticated"].(bool)
	return ok && authenticated
}

func (s *Service) DestroySession(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrEmptyKey is returned when Activate is called without a key. This
// is operator misuse and is rejected before any network call.
var ErrEmptyKey = errors.New("license key is empty")

const (
	entitlementCacheKey = "entitled"
	entitlementCacheTTL = 30 * time.Second
)

// Result describes the outcome of a license operation with enough
// detail for callers to render UI or decide whether to disable the
// sync feature. Operations never panic; ambiguity is resolved here.
type Result struct {
	Success        bool                `json:"success"`
	Activated      bool                `json:"activated"`
	Status         Status              `json:"status"`
	Message        string              `json:"message,omitempty"`
	HTTPCode       int                 `json:"httpCode,omitempty"`
	IsNetworkError bool                `json:"isNetworkError,omitempty"`
	InGracePeriod  bool                `json:"inGracePeriod,omitempty"`
	GraceDaysLeft  int                 `json:"graceDaysLeft,omitempty"`
	Errors         map[string][]string `json:"errors,omitempty"`
	Data           *Data               `json:"data,omitempty"`
}

// PortalClient is the slice of the portal API the resolver needs.
// Tests substitute a scripted double.
type PortalClient interface {
	Activate(ctx context.Context, key string) Outcome
	Validate(ctx context.Context, key string) Outcome
	Deactivate(ctx context.Context, key string) Outcome
}

// EntitlementSink receives the reconciler's only outward signal: the
// boolean "may premium sync run" plus the resolved status. The
// reconciler never toggles feature flags itself.
type EntitlementSink interface {
	EntitlementChanged(entitled bool, status Status)
}

// Service is the status resolver: it maps classified portal outcomes
// onto the persisted license record, including the bounded grace
// period that tolerates transient connectivity loss.
type Service struct {
	client PortalClient
	store  *Store
	clock  Clock
	cache  *ristretto.Cache
	sink   EntitlementSink
}

// NewService creates the resolver. The sink may be attached later with
// SetSink once the consuming subsystem exists.
func NewService(client PortalClient, store *Store, clock Clock) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 64,
		MaxCost:     16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create entitlement cache")
	}

	return &Service{
		client: client,
		store:  store,
		clock:  clock,
		cache:  cache,
	}, nil
}

// SetSink attaches the consumer of entitlement change signals.
func (s *Service) SetSink(sink EntitlementSink) {
	s.sink = sink
}

// CurrentRecord returns the persisted belief for display.
func (s *Service) CurrentRecord(ctx context.Context) (*Record, error) {
	return s.store.Load(ctx)
}

// Now exposes the service clock so callers derive display values
// (remaining days, grace countdown) from the same time source.
func (s *Service) Now() time.Time { return s.clock.Now() }

// Activate submits the key to the portal and persists the verdict.
func (s *Service) Activate(ctx context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}

	outcome := s.client.Activate(ctx, key)

	switch outcome.Kind {
	case Success:
		return s.adoptSuccess(ctx, key, outcome)

	case NetworkError:
		// Nothing is persisted: "try again later" must stay
		// distinguishable from "definitively rejected".
		return &Result{
			IsNetworkError: true,
			Message:        outcome.Message,
		}, nil

	default:
		return s.resolveRejection(ctx, key, outcome)
	}
}

// Check is the periodic heartbeat: it re-validates the stored key (or
// an explicit one) and reconciles the local status with the portal.
func (s *Service) Check(ctx context.Context, key string) (*Result, error) {
	prev, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if key == "" {
		key = prev.Key
	}
	if key == "" {
		return &Result{Success: false, Activated: false, Message: "no license key configured"}, nil
	}

	outcome := s.client.Validate(ctx, key)

	// The timestamp records the attempt, not the verdict.
	if err := s.store.SetLastChecked(ctx, s.clock.Now()); err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case Success:
		p := outcome.Payload
		if p != nil && p.Activated != nil && *p.Activated {
			return s.adoptSuccess(ctx, key, outcome)
		}
		return s.resolveUnactivated(ctx, key, prev, outcome)

	case NetworkError:
		return s.handleNetworkError(ctx, prev, outcome)

	default:
		if outcome.HTTPCode == http.StatusUnauthorized {
			if err := s.store.SaveRejection(ctx, key, StatusInvalid, nil); err != nil {
				return nil, err
			}
			s.invalidateEntitlement()
			return &Result{
				Status:   StatusInvalid,
				HTTPCode: outcome.HTTPCode,
				Message:  outcome.Message,
			}, nil
		}
		// Any other definitive code is ambiguous for this endpoint and
		// leaves the stored status untouched.
		return &Result{
			Status:   prev.Status,
			HTTPCode: outcome.HTTPCode,
			Message:  outcome.Message,
			Errors:   outcome.Errors,
		}, nil
	}
}

// Deactivate releases the activation best-effort and always clears the
// local record: the user must never be locked out of entering a
// different key because the portal is down or has already forgotten
// this activation.
func (s *Service) Deactivate(ctx context.Context) (*Result, error) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if rec.Key != "" {
		outcome := s.client.Deactivate(ctx, rec.Key)
		if outcome.Kind != Success {
			log.Warn().
				Int("httpCode", outcome.HTTPCode).
				Str("message", outcome.Message).
				Str("licenseKey", MaskKey(rec.Key)).
				Msg("Portal deactivation failed, clearing local license anyway")
		}
	}

	if err := s.store.Reset(ctx); err != nil {
		return nil, err
	}
	s.invalidateEntitlement()

	log.Info().Str("licenseKey", MaskKey(rec.Key)).Msg("License deactivated")

	return &Result{Success: true, Status: StatusNone, Message: "license deactivated"}, nil
}

// Entitled reports whether premium sync may run right now. Lookups are
// cached briefly because every sync tick and most API requests ask.
func (s *Service) Entitled(ctx context.Context) bool {
	if v, ok := s.cache.Get(entitlementCacheKey); ok {
		if entitled, ok := v.(bool); ok {
			return entitled
		}
	}

	rec, err := s.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load license record for entitlement check")
		return false
	}

	entitled := rec.IsValid()
	s.cache.SetWithTTL(entitlementCacheKey, entitled, 1, entitlementCacheTTL)
	return entitled
}

// Reconcile is the daily entry point invoked by the scheduler. After
// the check it pushes the entitlement verdict to the sink and emits a
// structured event when premium sync has to stop.
func (s *Service) Reconcile(ctx context.Context) {
	rec, err := s.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("License reconciliation could not load state")
		return
	}
	if rec.Key == "" {
		log.Debug().Msg("No license key stored, skipping scheduled check")
		return
	}

	result, err := s.Check(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("Scheduled license check failed")
		return
	}

	s.invalidateEntitlement()
	entitled := s.Entitled(ctx)

	if s.sink != nil {
		s.sink.EntitlementChanged(entitled, result.Status)
	}

	if !entitled {
		log.Warn().
			Str("type", "license_check").
			Str("status", string(result.Status)).
			Str("message", result.Message).
			Msg("License is not active, premium sync disabled")
	} else {
		log.Debug().
			Str("type", "license_check").
			Str("status", string(result.Status)).
			Msg("Scheduled license check completed")
	}
}

// adoptSuccess persists a confirmed activation. The portal's reported
// status wins when present; a success without one means active.
func (s *Service) adoptSuccess(ctx context.Context, key string, outcome Outcome) (*Result, error) {
	status := StatusActive
	var data *Data
	if d := outcome.Payload.licenseData(); d != nil {
		data = d
		if d.Status != "" {
			status = d.Status
		}
	}

	if err := s.store.SaveActivation(ctx, key, status, data, s.clock.Now()); err != nil {
		return nil, err
	}
	s.invalidateEntitlement()

	log.Info().
		Str("licenseKey", MaskKey(key)).
		Str("status", string(status)).
		Msg("License confirmed by portal")

	return &Result{
		Success:   true,
		Activated: status == StatusActive,
		Status:    status,
		HTTPCode:  outcome.HTTPCode,
		Data:      data,
	}, nil
}

// resolveRejection maps a definitive activation error onto a status.
// The attempted key is always kept so the UI can show what was tried.
func (s *Service) resolveRejection(ctx context.Context, key string, outcome Outcome) (*Result, error) {
	res := &Result{
		HTTPCode: outcome.HTTPCode,
		Message:  outcome.Message,
		Errors:   outcome.Errors,
	}

	switch outcome.HTTPCode {
	case http.StatusUnauthorized:
		res.Status = StatusInvalid
		if err := s.store.SaveRejection(ctx, key, StatusInvalid, nil); err != nil {
			return nil, err
		}

	case http.StatusForbidden:
		status, data := s.resolveForbidden(ctx, key, outcome.Message)
		res.Status = status
		res.Data = data
		if err := s.store.SaveRejection(ctx, key, status, data); err != nil {
			return nil, err
		}

	default:
		// Ambiguous condition: record the attempted key, keep the
		// previous status.
		prev, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		res.Status = prev.Status
		if err := s.store.SaveRejection(ctx, key, prev.Status, nil); err != nil {
			return nil, err
		}
	}

	s.invalidateEntitlement()

	log.Warn().
		Str("licenseKey", MaskKey(key)).
		Int("httpCode", outcome.HTTPCode).
		Str("status", string(res.Status)).
		Str("message", outcome.Message).
		Msg("License activation rejected")

	return res, nil
}

// resolveForbidden disambiguates a 403. "Domain limit" is recognized
// directly; everything else triggers one read-only validate call for
// the authoritative status, with the message parser as last resort.
func (s *Service) resolveForbidden(ctx context.Context, key, message string) (Status, *Data) {
	if strings.Contains(strings.ToLower(message), "domain limit") {
		return StatusDomainLimit, nil
	}

	outcome := s.client.Validate(ctx, key)
	if outcome.Kind == Success && outcome.Payload != nil {
		if d := outcome.Payload.licenseData(); d != nil && d.Status != "" {
			return d.Status, d
		}
	}

	return ParseStatusFromMessage(message), nil
}

// resolveUnactivated handles the ambiguous "success but activated:
// false" answer. Which way to resolve depends on what we believed
// before the call.
func (s *Service) resolveUnactivated(ctx context.Context, key string, prev *Record, outcome Outcome) (*Result, error) {
	if prev.Status == StatusActive {
		// Regression: the portal previously confirmed this domain.
		// Ask for the authoritative status rather than guessing.
		status := StatusSuspended
		var data *Data
		if v := s.client.Validate(ctx, key); v.Kind == Success && v.Payload != nil {
			if d := v.Payload.licenseData(); d != nil && d.Status != "" {
				status = d.Status
				data = d
			}
		}
		if err := s.store.SaveRejection(ctx, key, status, data); err != nil {
			return nil, err
		}
		s.invalidateEntitlement()
		return &Result{
			Status:   status,
			HTTPCode: outcome.HTTPCode,
			Data:     data,
			Message:  "license is no longer active for this domain",
		}, nil
	}

	// Empty or already non-active: a full activation attempt both
	// re-binds the domain and re-derives the precise non-active reason.
	return s.Activate(ctx, key)
}

// handleNetworkError applies the grace-period rules. Grace only ever
// protects a license that was active when the outage was observed.
func (s *Service) handleNetworkError(ctx context.Context, prev *Record, outcome Outcome) (*Result, error) {
	res := &Result{
		IsNetworkError: true,
		Status:         prev.Status,
		Message:        outcome.Message,
	}

	if prev.Status != StatusActive {
		return res, nil
	}

	now := s.clock.Now()

	if prev.GraceStartedAt == nil {
		if err := s.store.OpenGrace(ctx, now); err != nil {
			return nil, err
		}
		res.InGracePeriod = true
		res.GraceDaysLeft = GracePeriodDays
		res.Message = fmt.Sprintf("network error, remaining active for %d days", GracePeriodDays)

		log.Warn().
			Str("type", "license_check").
			Str("status", string(prev.Status)).
			Str("message", res.Message).
			Msg("License portal unreachable, grace period started")
		return res, nil
	}

	if now.After(prev.graceEnd()) {
		// Suspended rather than invalid: the key may well still be
		// good, connectivity is what ran out.
		if err := s.store.ExpireGrace(ctx); err != nil {
			return nil, err
		}
		s.invalidateEntitlement()
		res.Status = StatusSuspended
		res.Message = "grace period expired"

		log.Warn().
			Str("type", "license_check").
			Str("status", string(StatusSuspended)).
			Str("message", res.Message).
			Msg("Grace period expired without portal contact")
		return res, nil
	}

	res.InGracePeriod = true
	res.GraceDaysLeft = prev.GraceDaysRemaining(now)
	res.Message = fmt.Sprintf("network error, %d days of grace remaining", res.GraceDaysLeft)
	return res, nil
}

func (s *Service) invalidateEntitlement() {
	s.cache.Del(entitlementCacheKey)
}

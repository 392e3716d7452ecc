// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"encoding/json"
	"net/http"
)

// OutcomeKind discriminates the classified result of one portal call.
type OutcomeKind int

const (
	// Success covers every 2xx response, including empty 204 bodies.
	Success OutcomeKind = iota
	// DefinitiveError is an authoritative rejection from the portal.
	DefinitiveError
	// NetworkError means no response was received at all; HTTPCode is 0.
	NetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case DefinitiveError:
		return "definitive_error"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Payload is the decoded success body of a portal call. The validate
// endpoint nests the license metadata under "license" and adds the
// per-domain "activated" flag; the activate endpoint returns the
// metadata at the top level.
type Payload struct {
	Data
	Activated *bool `json:"activated,omitempty"`
	License   *Data `json:"license,omitempty"`
}

// licenseData returns the authoritative license metadata within the
// payload: the nested license object when present, else the top level.
func (p *Payload) licenseData() *Data {
	if p == nil {
		return nil
	}
	if p.License != nil {
		return p.License
	}
	d := p.Data
	return &d
}

// Outcome is the classified result of a single portal call. Exactly one
// attempt is made per operation; the next scheduled or user-triggered
// call is the retry.
type Outcome struct {
	Kind     OutcomeKind
	HTTPCode int
	Payload  *Payload
	Message  string
	// Errors carries the portal's field-level validation detail
	// verbatim; the reconciler never interprets it.
	Errors map[string][]string
}

// envelope matches both the portal's success and error response shapes.
type envelope struct {
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

const genericErrorMessage = "license portal returned an error"

// Classify turns a raw transport result into an Outcome. No response at
// all is a network error; a 2xx response is success with the envelope's
// data field (or the whole body) as payload; anything else is a
// definitive rejection carrying the portal's message.
func Classify(status int, body []byte, transportErr error) Outcome {
	if transportErr != nil {
		return Outcome{Kind: NetworkError, Message: transportErr.Error()}
	}

	if status == http.StatusNoContent {
		return Outcome{Kind: Success, HTTPCode: status}
	}

	var env envelope
	// Bodies that are not the documented envelope are tolerated; the
	// raw body may itself be the payload.
	_ = json.Unmarshal(body, &env)

	if status >= 200 && status < 300 {
		payload := &Payload{}
		raw := env.Data
		if len(raw) == 0 {
			raw = body
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, payload); err != nil {
				payload = &Payload{}
			}
		}
		return Outcome{Kind: Success, HTTPCode: status, Payload: payload}
	}

	message := env.Message
	if message == "" {
		message = genericErrorMessage
	}

	return Outcome{
		Kind:     DefinitiveError,
		HTTPCode: status,
		Message:  message,
		Errors:   env.Errors,
	}
}

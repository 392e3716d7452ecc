// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNetworkError(t *testing.T) {
	outcome := Classify(0, nil, errors.New("dial tcp: connection refused"))

	assert.Equal(t, NetworkError, outcome.Kind)
	assert.Equal(t, 0, outcome.HTTPCode)
	assert.Contains(t, outcome.Message, "connection refused")
	assert.Nil(t, outcome.Payload)
}

func TestClassifyNoContent(t *testing.T) {
	outcome := Classify(http.StatusNoContent, nil, nil)

	assert.Equal(t, Success, outcome.Kind)
	assert.Equal(t, http.StatusNoContent, outcome.HTTPCode)
	assert.Nil(t, outcome.Payload)
}

func TestClassifySuccessEnvelope(t *testing.T) {
	body := []byte(`{"data":{"status":"active","activated":true,"activations":{"limit":5,"used":2},"product":"driftsync","package":"pro"}}`)

	outcome := Classify(http.StatusOK, body, nil)

	require.Equal(t, Success, outcome.Kind)
	require.NotNil(t, outcome.Payload)
	assert.Equal(t, StatusActive, outcome.Payload.Status)
	require.NotNil(t, outcome.Payload.Activated)
	assert.True(t, *outcome.Payload.Activated)
	assert.Equal(t, uint(5), outcome.Payload.Activations.Limit)
	assert.Equal(t, uint(2), outcome.Payload.Activations.Used)
	assert.Equal(t, "pro", outcome.Payload.Package)
}

func TestClassifySuccessBareBody(t *testing.T) {
	// Some portal endpoints skip the envelope entirely.
	body := []byte(`{"status":"active","product":"driftsync"}`)

	outcome := Classify(http.StatusCreated, body, nil)

	require.Equal(t, Success, outcome.Kind)
	require.NotNil(t, outcome.Payload)
	assert.Equal(t, StatusActive, outcome.Payload.Status)
	assert.Equal(t, "driftsync", outcome.Payload.Product)
}

func TestClassifySuccessNestedLicense(t *testing.T) {
	body := []byte(`{"data":{"activated":false,"license":{"status":"paused"}}}`)

	outcome := Classify(http.StatusOK, body, nil)

	require.Equal(t, Success, outcome.Kind)
	require.NotNil(t, outcome.Payload.Activated)
	assert.False(t, *outcome.Payload.Activated)
	require.NotNil(t, outcome.Payload.License)
	assert.Equal(t, StatusPaused, outcome.Payload.License.Status)
}

func TestClassifyDefinitiveError(t *testing.T) {
	body := []byte(`{"message":"License key is invalid.","errors":{"license_key":["The license key field is required."]}}`)

	outcome := Classify(http.StatusUnauthorized, body, nil)

	assert.Equal(t, DefinitiveError, outcome.Kind)
	assert.Equal(t, http.StatusUnauthorized, outcome.HTTPCode)
	assert.Equal(t, "License key is invalid.", outcome.Message)
	require.Contains(t, outcome.Errors, "license_key")
	assert.Len(t, outcome.Errors["license_key"], 1)
}

func TestClassifyDefinitiveErrorFallbackMessage(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty body", body: nil},
		{name: "non-json body", body: []byte("<html>502 Bad Gateway</html>")},
		{name: "json without message", body: []byte(`{"status":"error"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(http.StatusInternalServerError, tt.body, nil)

			assert.Equal(t, DefinitiveError, outcome.Kind)
			assert.Equal(t, genericErrorMessage, outcome.Message)
		})
	}
}

func TestClassifySuccessMalformedBody(t *testing.T) {
	outcome := Classify(http.StatusOK, []byte("not json"), nil)

	require.Equal(t, Success, outcome.Kind)
	require.NotNil(t, outcome.Payload)
	assert.Equal(t, StatusNone, outcome.Payload.Status)
}

func TestClassifyValidationError(t *testing.T) {
	body := []byte(`{"message":"The given data was invalid.","errors":{"domain":["The domain format is invalid."]}}`)

	outcome := Classify(http.StatusUnprocessableEntity, body, nil)

	// 422 gets no special status mapping; it surfaces as a plain
	// definitive failure with the detail carried through.
	assert.Equal(t, DefinitiveError, outcome.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.HTTPCode)
	assert.Contains(t, outcome.Errors, "domain")
}

// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsDocumentedRequestBody(t *testing.T) {
	var gotPath string
	var gotBody portalRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"active"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "driftsync-pro", "example.com")
	outcome := client.Activate(context.Background(), "KEY-1234-ABCD")

	assert.Equal(t, "/licenses/activate", gotPath)
	assert.Equal(t, "KEY-1234-ABCD", gotBody.LicenseKey)
	assert.Equal(t, "driftsync-pro", gotBody.ProductSlug)
	assert.Equal(t, "example.com", gotBody.Domain)
	assert.Equal(t, Success, outcome.Kind)
	assert.Equal(t, StatusActive, outcome.Payload.Status)
}

func TestClientEndpointPaths(t *testing.T) {
	var paths []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "driftsync-pro", "example.com")
	ctx := context.Background()

	client.Validate(ctx, "k")
	client.Activate(ctx, "k")
	client.Deactivate(ctx, "k")

	assert.Equal(t, []string{"/licenses/validate", "/licenses/activate", "/licenses/deactivate"}, paths)
}

func TestClientDefinitiveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"License key is invalid."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "driftsync-pro", "example.com")
	outcome := client.Activate(context.Background(), "bogus")

	assert.Equal(t, DefinitiveError, outcome.Kind)
	assert.Equal(t, http.StatusUnauthorized, outcome.HTTPCode)
	assert.Equal(t, "License key is invalid.", outcome.Message)
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client := NewClient(server.URL, "driftsync-pro", "example.com")
	outcome := client.Validate(context.Background(), "k")

	assert.Equal(t, NetworkError, outcome.Kind)
	assert.Equal(t, 0, outcome.HTTPCode)
	assert.NotEmpty(t, outcome.Message)
}

func TestResolveDomain(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		expected string
	}{
		{
			name:     "full url",
			baseURL:  "https://Sync.Example.COM/settings",
			expected: "sync.example.com",
		},
		{
			name:     "url with port",
			baseURL:  "http://example.com:8734",
			expected: "example.com",
		},
		{
			name:     "bare host",
			baseURL:  "example.com",
			expected: "example.com",
		},
		{
			name:     "bare host with port",
			baseURL:  "example.com:9090",
			expected: "example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveDomain(tt.baseURL))
		})
	}

	t.Run("empty falls back to hostname", func(t *testing.T) {
		assert.NotEmpty(t, ResolveDomain(""))
	})
}

// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	requestTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// Client talks to the driftsync licensing portal. It performs the raw
// HTTP POSTs and classification; retry policy belongs to callers, and
// here there is none.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	productSlug string
	domain      string
}

// NewClient creates a portal client bound to one product and the
// installation's normalized domain.
func NewClient(baseURL, productSlug, domain string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		productSlug: productSlug,
		domain:      domain,
	}
}

// Domain returns the normalized host this client activates against.
func (c *Client) Domain() string { return c.domain }

type portalRequest struct {
	LicenseKey  string `json:"license_key"`
	ProductSlug string `json:"product_slug"`
	Domain      string `json:"domain,omitempty"`
}

// Activate binds the key to this installation's domain.
func (c *Client) Activate(ctx context.Context, key string) Outcome {
	return c.post(ctx, "/licenses/activate", key)
}

// Validate is read-only: it reports the authoritative license status
// and whether this domain is activated, without changing anything.
func (c *Client) Validate(ctx context.Context, key string) Outcome {
	return c.post(ctx, "/licenses/validate", key)
}

// Deactivate releases this domain's activation slot.
func (c *Client) Deactivate(ctx context.Context, key string) Outcome {
	return c.post(ctx, "/licenses/deactivate", key)
}

func (c *Client) post(ctx context.Context, path, key string) Outcome {
	body, err := json.Marshal(portalRequest{
		LicenseKey:  key,
		ProductSlug: c.productSlug,
		Domain:      c.domain,
	})
	if err != nil {
		return Outcome{Kind: NetworkError, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: NetworkError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().
			Err(err).
			Str("endpoint", path).
			Str("licenseKey", MaskKey(key)).
			Msg("License portal unreachable")
		return Classify(0, nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Classify(0, nil, err)
	}

	outcome := Classify(resp.StatusCode, respBody, nil)

	log.Trace().
		Str("endpoint", path).
		Str("licenseKey", MaskKey(key)).
		Int("httpCode", outcome.HTTPCode).
		Str("outcome", outcome.Kind.String()).
		Msg("License portal call completed")

	return outcome
}

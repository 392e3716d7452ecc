// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/license"
)

type LicenseCollector struct {
	licenseService *license.Service

	licenseValidDesc  *prometheus.Desc
	licenseStatusDesc *prometheus.Desc
	licenseExpiryDesc *prometheus.Desc
	graceActiveDesc   *prometheus.Desc
	graceDaysLeftDesc *prometheus.Desc
	lastCheckedDesc   *prometheus.Desc
	scrapeErrorsDesc  *prometheus.Desc
}

func NewLicenseCollector(licenseService *license.Service) *LicenseCollector {
	return &LicenseCollector{
		licenseService: licenseService,

		licenseValidDesc: prometheus.NewDesc(
			"driftsync_license_valid",
			"Whether the stored license currently grants premium features (1=valid, 0=not valid)",
			nil,
			nil,
		),
		licenseStatusDesc: prometheus.NewDesc(
			"driftsync_license_status",
			"Stored license status (1 for the current status label)",
			[]string{"status"},
			nil,
		),
		licenseExpiryDesc: prometheus.NewDesc(
			"driftsync_license_expiry_timestamp_seconds",
			"License expiry as a Unix timestamp, absent for lifetime licenses",
			nil,
			nil,
		),
		graceActiveDesc: prometheus.NewDesc(
			"driftsync_license_grace_active",
			"Whether the network-error grace period is open (1=open, 0=closed)",
			nil,
			nil,
		),
		graceDaysLeftDesc: prometheus.NewDesc(
			"driftsync_license_grace_days_remaining",
			"Days remaining in the open grace period",
			nil,
			nil,
		),
		lastCheckedDesc: prometheus.NewDesc(
			"driftsync_license_last_checked_timestamp_seconds",
			"Last portal contact attempt as a Unix timestamp",
			nil,
			nil,
		),
		scrapeErrorsDesc: prometheus.NewDesc(
			"driftsync_license_scrape_errors_total",
			"Total number of license scrape errors",
			[]string{"type"},
			nil,
		),
	}
}

func (c *LicenseCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.licenseValidDesc
	ch <- c.licenseStatusDesc
	ch <- c.licenseExpiryDesc
	ch <- c.graceActiveDesc
	ch <- c.graceDaysLeftDesc
	ch <- c.lastCheckedDesc
	ch <- c.scrapeErrorsDesc
}

func (c *LicenseCollector) Collect(ch chan<- prometheus.Metric) {
	if c.licenseService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := c.licenseService.CurrentRecord(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load license record for metrics")
		ch <- prometheus.MustNewConstMetric(c.scrapeErrorsDesc, prometheus.CounterValue, 1, "load")
		return
	}

	now := c.licenseService.Now()

	valid := 0.0
	if rec.IsValid() {
		valid = 1
	}
	ch <- prometheus.MustNewConstMetric(c.licenseValidDesc, prometheus.GaugeValue, valid)

	if rec.Status != license.StatusNone {
		ch <- prometheus.MustNewConstMetric(c.licenseStatusDesc, prometheus.GaugeValue, 1, string(rec.Status))
	}

	if rec.Data != nil && rec.Data.ExpiresAt != nil {
		ch <- prometheus.MustNewConstMetric(c.licenseExpiryDesc, prometheus.GaugeValue, float64(rec.Data.ExpiresAt.Unix()))
	}

	graceActive := 0.0
	if rec.InGracePeriod(now) {
		graceActive = 1
		ch <- prometheus.MustNewConstMetric(c.graceDaysLeftDesc, prometheus.GaugeValue, float64(rec.GraceDaysRemaining(now)))
	}
	ch <- prometheus.MustNewConstMetric(c.graceActiveDesc, prometheus.GaugeValue, graceActive)

	if rec.LastCheckedAt != nil {
		ch <- prometheus.MustNewConstMetric(c.lastCheckedDesc, prometheus.GaugeValue, float64(rec.LastCheckedAt.Unix()))
	}
}

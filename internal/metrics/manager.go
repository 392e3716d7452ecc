// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/license"
)

type Manager struct {
	registry         *prometheus.Registry
	licenseCollector *LicenseCollector
}

func NewManager(licenseService *license.Service) *Manager {
	registry := prometheus.NewRegistry()

	licenseCollector := NewLicenseCollector(licenseService)
	registry.MustRegister(licenseCollector)

	log.Info().Msg("Metrics manager initialized with license collector")

	return &Manager{
		registry:         registry,
		licenseCollector: licenseCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

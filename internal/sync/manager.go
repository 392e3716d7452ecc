// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sync implements the premium directory mirroring feature. The
// manager only runs while the license service reports a valid
// entitlement; revocation tears the scheduled job down.
package sync

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/driftsync/driftsync/internal/license"
	"github.com/driftsync/driftsync/internal/scheduler"
)

const JobName = "sync"

var (
	ErrNotEntitled   = errors.New("directory mirroring requires a valid license")
	ErrNotConfigured = errors.New("sync source and target directories are not configured")
)

type Status struct {
	Scheduled   bool       `json:"scheduled"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	FilesCopied int        `json:"filesCopied"`
}

type Manager struct {
	sourceDir string
	targetDir string
	interval  time.Duration
	entitled  func() bool
	sched     *scheduler.Scheduler

	mu          gosync.Mutex
	lastRunAt   *time.Time
	lastErr     error
	filesCopied int
}

func NewManager(sourceDir, targetDir string, interval time.Duration, entitled func() bool, sched *scheduler.Scheduler) *Manager {
	return &Manager{
		sourceDir: sourceDir,
		targetDir: targetDir,
		interval:  interval,
		entitled:  entitled,
		sched:     sched,
	}
}

// EntitlementChanged wires the manager to the license service. A valid
// entitlement schedules the mirror job; anything else clears it.
func (m *Manager) EntitlementChanged(entitled bool, status license.Status) {
	if entitled {
		if m.sched.Schedule(JobName, m.interval, m.runScheduled) {
			log.Info().Str("status", string(status)).Msg("Directory mirroring enabled")
		}
		return
	}

	m.sched.Clear(JobName)
	log.Info().Str("status", string(status)).Msg("Directory mirroring disabled")
}

func (m *Manager) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := m.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled sync failed")
	}
}

// RunOnce mirrors the source directory into the target directory and
// returns the number of files copied. Unchanged files are skipped.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	if !m.entitled() {
		return 0, ErrNotEntitled
	}
	if m.sourceDir == "" || m.targetDir == "" {
		return 0, ErrNotConfigured
	}

	copied, err := m.mirror(ctx)

	now := time.Now()
	m.mu.Lock()
	m.lastRunAt = &now
	m.lastErr = err
	m.filesCopied = copied
	m.mu.Unlock()

	if err != nil {
		return copied, err
	}

	log.Debug().Int("copied", copied).Str("source", m.sourceDir).Str("target", m.targetDir).Msg("Sync completed")
	return copied, nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Scheduled:   m.sched.IsScheduled(JobName),
		LastRunAt:   m.lastRunAt,
		FilesCopied: m.filesCopied,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *Manager) mirror(ctx context.Context) (int, error) {
	copied := 0

	err := filepath.WalkDir(m.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(m.sourceDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(m.targetDir, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if upToDate(target, info) {
			return nil
		}

		if err := copyFile(path, target, info.ModTime()); err != nil {
			return errors.Wrapf(err, "failed to copy %s", rel)
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, errors.Wrap(err, "mirror walk failed")
	}

	return copied, nil
}

// upToDate treats matching size and modtime as unchanged.
func upToDate(target string, source fs.FileInfo) bool {
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	return info.Size() == source.Size() && info.ModTime().Equal(source.ModTime())
}

func copyFile(source, target string, modTime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Chtimes(target, modTime, modTime)
}

// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler runs named jobs on fixed intervals. A job name is unique;
// scheduling an already-scheduled name is a no-op.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]chan struct{}
	wg   sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{
		jobs: make(map[string]chan struct{}),
	}
}

// Schedule starts fn on the given interval. It reports false when a
// job with the same name is already running.
func (s *Scheduler) Schedule(name string, interval time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return false
	}

	stop := make(chan struct{})
	s.jobs[name] = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Debug().Str("job", name).Dur("interval", interval).Msg("Job scheduled")

		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				log.Debug().Str("job", name).Msg("Job stopped")
				return
			}
		}
	}()

	return true
}

func (s *Scheduler) IsScheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[name]
	return exists
}

// Clear stops the named job. Unknown names are ignored.
func (s *Scheduler) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, exists := s.jobs[name]; exists {
		close(stop)
		delete(s.jobs, name)
	}
}

// Stop cancels all jobs and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for name, stop := range s.jobs {
		close(stop)
		delete(s.jobs, name)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

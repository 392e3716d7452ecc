// Copyright (c) 2025, the driftsync contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "empty key",
			key:      "",
			expected: "",
		},
		{
			name:     "short key fully masked",
			key:      "AB12",
			expected: "••••",
		},
		{
			name:     "medium key shows first two",
			key:      "AB12CD",
			expected: "AB••••",
		},
		{
			name:     "eight chars still medium tier",
			key:      "ABCD1234",
			expected: "AB••••••",
		},
		{
			name:     "long key shows first and last four",
			key:      "ABCD1234EFGH",
			expected: "ABCD••••EFGH",
		},
		{
			name:     "very long key keeps fixed mask width",
			key:      "ABCD-1234-EFGH-5678",
			expected: "ABCD••••5678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskKey(tt.key))
		})
	}
}

func TestRecordIsValid(t *testing.T) {
	assert.True(t, (&Record{Key: "abc", Status: StatusActive}).IsValid())
	assert.False(t, (&Record{Key: "", Status: StatusActive}).IsValid())
	assert.False(t, (&Record{Key: "abc", Status: StatusSuspended}).IsValid())
	assert.False(t, (&Record{}).IsValid())
}

func TestRecordIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lifetime := &Record{Data: &Data{}}
	assert.False(t, lifetime.IsExpired(now), "licenses without expiry never expire")

	noData := &Record{}
	assert.False(t, noData.IsExpired(now))

	past := &Record{Data: &Data{ExpiresAt: timePtr(now.Add(-time.Hour))}}
	assert.True(t, past.IsExpired(now))

	future := &Record{Data: &Data{ExpiresAt: timePtr(now.Add(time.Hour))}}
	assert.False(t, future.IsExpired(now))

	exactlyNow := &Record{Data: &Data{ExpiresAt: timePtr(now)}}
	assert.False(t, exactlyNow.IsExpired(now))
}

func TestRecordRemainingDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lifetime license", func(t *testing.T) {
		rec := &Record{Data: &Data{}}
		_, ok := rec.RemainingDays(now)
		assert.False(t, ok)
	})

	t.Run("expires exactly now returns zero", func(t *testing.T) {
		rec := &Record{Data: &Data{ExpiresAt: timePtr(now)}}
		days, ok := rec.RemainingDays(now)
		assert.True(t, ok)
		assert.Equal(t, 0, days)
	})

	t.Run("already expired clamps at zero", func(t *testing.T) {
		rec := &Record{Data: &Data{ExpiresAt: timePtr(now.Add(-72 * time.Hour))}}
		days, ok := rec.RemainingDays(now)
		assert.True(t, ok)
		assert.Equal(t, 0, days)
	})

	t.Run("partial days floor", func(t *testing.T) {
		rec := &Record{Data: &Data{ExpiresAt: timePtr(now.Add(47 * time.Hour))}}
		days, ok := rec.RemainingDays(now)
		assert.True(t, ok)
		assert.Equal(t, 1, days)
	})

	t.Run("exact days", func(t *testing.T) {
		rec := &Record{Data: &Data{ExpiresAt: timePtr(now.Add(30 * 24 * time.Hour))}}
		days, ok := rec.RemainingDays(now)
		assert.True(t, ok)
		assert.Equal(t, 30, days)
	})
}

func TestRecordGracePeriod(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no window open", func(t *testing.T) {
		rec := &Record{Status: StatusActive}
		assert.False(t, rec.InGracePeriod(start))
		assert.Equal(t, 0, rec.GraceDaysRemaining(start))
	})

	t.Run("freshly opened window", func(t *testing.T) {
		rec := &Record{Status: StatusActive, GraceStartedAt: timePtr(start)}
		assert.True(t, rec.InGracePeriod(start))
		assert.Equal(t, GracePeriodDays, rec.GraceDaysRemaining(start))
	})

	t.Run("three days in", func(t *testing.T) {
		rec := &Record{Status: StatusActive, GraceStartedAt: timePtr(start)}
		now := start.Add(3 * 24 * time.Hour)
		assert.True(t, rec.InGracePeriod(now))
		assert.Equal(t, 4, rec.GraceDaysRemaining(now))
	})

	t.Run("partial day rounds up", func(t *testing.T) {
		rec := &Record{Status: StatusActive, GraceStartedAt: timePtr(start)}
		now := start.Add(3*24*time.Hour + 12*time.Hour)
		assert.True(t, rec.InGracePeriod(now))
		assert.Equal(t, 4, rec.GraceDaysRemaining(now))
	})

	t.Run("window elapsed", func(t *testing.T) {
		rec := &Record{Status: StatusActive, GraceStartedAt: timePtr(start)}
		now := start.Add(8 * 24 * time.Hour)
		assert.False(t, rec.InGracePeriod(now))
		assert.Equal(t, 0, rec.GraceDaysRemaining(now))
	})

	t.Run("independent of status", func(t *testing.T) {
		// Display code still shows the countdown even after the
		// status has already flipped.
		rec := &Record{Status: StatusSuspended, GraceStartedAt: timePtr(start)}
		now := start.Add(24 * time.Hour)
		assert.True(t, rec.InGracePeriod(now))
		assert.Equal(t, 6, rec.GraceDaysRemaining(now))
	})
}

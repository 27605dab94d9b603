// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package dayclock resolves calendar-day boundaries under a single fixed
// UTC offset. Every component that reasons about "the same day" or "start
// of day" does so through a Clock so the offset is configured exactly once.
package dayclock

import (
	"fmt"
	"time"
)

// DateKeyLayout is the persistence identity format for one day's records.
const DateKeyLayout = "2006-01-02"

// Clock computes day boundaries for a fixed UTC offset given in minutes.
// The zero value behaves as plain UTC.
type Clock struct {
	offset time.Duration
	now    func() time.Time
}

// New creates a Clock for the given fixed UTC offset in minutes
// (e.g. 330 for UTC+5:30, 0 for UTC).
func New(offsetMinutes int) *Clock {
	return &Clock{
		offset: time.Duration(offsetMinutes) * time.Minute,
		now:    time.Now,
	}
}

// NewFrozen creates a Clock whose "now" is pinned to the given instant.
// Intended for tests and deterministic replays.
func NewFrozen(offsetMinutes int, now time.Time) *Clock {
	c := New(offsetMinutes)
	c.now = func() time.Time { return now }
	return c
}

// OffsetMinutes returns the configured offset in minutes.
func (c *Clock) OffsetMinutes() int {
	return int(c.offset / time.Minute)
}

// StartOfDay returns the instant of local midnight for the day containing t.
// The result is expressed in UTC; adding the offset back yields 00:00 local.
func (c *Clock) StartOfDay(t time.Time) time.Time {
	local := t.UTC().Add(c.offset)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-c.offset)
}

// SameDay reports whether a and b fall on the same local calendar date.
func (c *Clock) SameDay(a, b time.Time) bool {
	la := a.UTC().Add(c.offset)
	lb := b.UTC().Add(c.offset)
	ay, am, ad := la.Date()
	by, bm, bd := lb.Date()
	return ay == by && am == bm && ad == bd
}

// DateKey formats t as YYYY-MM-DD under the fixed offset. The key is the
// document ID for daily records and must stay stable and injective: two
// instants on different local days never share a key.
func (c *Clock) DateKey(t time.Time) string {
	return t.UTC().Add(c.offset).Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key back into the local midnight instant
// it identifies. Rejects anything that does not round-trip through DateKey.
func (c *Clock) ParseDateKey(key string) (time.Time, error) {
	parsed, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	t := parsed.Add(-c.offset)
	if c.DateKey(t) != key {
		return time.Time{}, fmt.Errorf("date key %q does not normalize cleanly", key)
	}
	return t, nil
}

// TodayStart returns local midnight of the current day.
func (c *Clock) TodayStart() time.Time {
	return c.StartOfDay(c.now())
}

// YesterdayStart returns local midnight of the previous day. This is the
// processing date for a scheduled day-end run.
func (c *Clock) YesterdayStart() time.Time {
	return c.AddDays(c.TodayStart(), -1)
}

// AddDays shifts a day-start instant by n whole days.
// With a fixed offset there is no DST, so a day is always 24h.
func (c *Clock) AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * 24 * time.Hour)
}

// DaysBetween returns the number of whole days from a to b (b - a).
func (c *Clock) DaysBetween(a, b time.Time) int {
	return int(c.StartOfDay(b).Sub(c.StartOfDay(a)) / (24 * time.Hour))
}

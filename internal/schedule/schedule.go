// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package schedule runs a job once a day at a fixed local time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidTime is returned by [ParseTimeOfDay] for malformed input.
var ErrInvalidTime = errors.New("invalid time of day, want HH:MM")

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour, Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" time such as "09:00".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Next returns the first moment strictly after now at which the wall clock in
// now's location shows t.
func (t TimeOfDay) Next(now time.Time) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, t.Hour, t.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, t.Hour, t.Minute, 0, 0, now.Location())
	}
	return next
}

// Daily calls Job every day at At.
type Daily struct {
	At TimeOfDay
	// Job is called with the current time of Clock. Calls never overlap.
	Job func(ctx context.Context, now time.Time)
	// Clock defaults to the real clock.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Run waits for each occurrence of At and runs the job, until ctx is done.
func (d *Daily) Run(ctx context.Context) error {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		now := clock.Now()
		next := d.At.Next(now)
		logger.Debug("next scheduled run", "at", next)

		timer := clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		}
		d.Job(ctx, clock.Now())
	}
}

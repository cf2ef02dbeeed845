// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package birthday

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.astrophena.name/bdaybot/internal/metrics"
)

// Sender delivers a text message to a destination chat.
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Source provides fresh copies of the roster and the greeting configuration.
// Implementations never fail: unreadable data is replaced by an empty roster
// or [DefaultConfig].
type Source interface {
	Roster(ctx context.Context) Roster
	Config(ctx context.Context) GreetingConfig
}

// Notifier congratulates people whose birthday is on a given day.
type Notifier struct {
	Source      Source
	Sender      Sender
	Destination string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// SweepResult describes the outcome of [Notifier.Sweep].
type SweepResult struct {
	Day     string
	Matched int
	Sent    int
}

// Sweep sends a greeting for every record born on day. Roster and config are
// read anew on every call, and nothing remembers what was already sent, so
// calling Sweep twice for the same day greets twice.
//
// A failed delivery doesn't stop the sweep; all failures are logged and
// returned together.
func (n *Notifier) Sweep(ctx context.Context, day string) (SweepResult, error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n.Metrics.SweepStarted()

	var (
		roster  = n.Source.Roster(ctx)
		cfg     = n.Source.Config(ctx)
		matched = roster.BornOn(day)
		res     = SweepResult{Day: day, Matched: len(matched)}
		errs    []error
	)
	logger.Debug("sweeping roster", "day", day, "records", len(roster), "matched", len(matched))

	for _, rec := range matched {
		err := n.Sender.Send(ctx, n.Destination, Format(cfg.Template, rec))
		n.Metrics.GreetingDispatched(err)
		if err != nil {
			logger.Error("sending greeting failed", "name", rec.Name, "day", day, "err", err)
			errs = append(errs, fmt.Errorf("greeting %s: %w", rec.Name, err))
			continue
		}
		res.Sent++
		logger.Info("sent greeting", "name", rec.Name, "day", day)
	}

	return res, errors.Join(errs...)
}

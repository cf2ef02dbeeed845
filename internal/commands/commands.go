// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package commands implements the bot's chat commands on top of the roster.
//
// The operations (add, remove, update, list, set and get the greeting, test)
// are exposed as methods of [Router] returning errors that wrap the sentinels
// below, and as text commands through [Router.Handle].
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.astrophena.name/bdaybot/internal/birthday"
	"go.astrophena.name/bdaybot/internal/metrics"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrMalformed means that arguments are missing or invalid.
	ErrMalformed = errors.New("malformed input")
	// ErrNotFound means that no record has the given name.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means that a record with the given name already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrUnauthorized means that the policy denied the request.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store is where the roster and the greeting live. It is implemented by
// *roster.Store.
type Store interface {
	birthday.Source
	Update(ctx context.Context, f func(birthday.Roster) (birthday.Roster, error)) error
	UpdateConfig(ctx context.Context, f func(birthday.GreetingConfig) (birthday.GreetingConfig, error)) error
}

// Sweeper runs the greeting routine for a day. It is implemented by
// *birthday.Notifier.
type Sweeper interface {
	Sweep(ctx context.Context, day string) (birthday.SweepResult, error)
}

// Router runs commands.
type Router struct {
	Store   Store
	Sweeper Sweeper
	// Admin is the user ID of the administrator.
	Admin  int64
	Policy Policy
	// BotUsername is the bot's own username. Commands addressed to another
	// bot, as in /list@other_bot, are ignored.
	BotUsername string
	// Clock tells today's date for /test. Defaults to the real clock.
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (r *Router) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Router) clock() clockwork.Clock {
	if r.Clock == nil {
		return clockwork.NewRealClock()
	}
	return r.Clock
}

// Add appends rec to the roster.
func (r *Router) Add(ctx context.Context, rec birthday.Record) error {
	if rec.Name == "" || rec.Date == "" || rec.Handle == "" {
		return fmt.Errorf("%w: name, date and username are required", ErrMalformed)
	}
	if err := birthday.ValidateDate(rec.Date); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return r.Store.Update(ctx, func(roster birthday.Roster) (birthday.Roster, error) {
		if roster.Index(rec.Name) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, rec.Name)
		}
		return append(roster, rec), nil
	})
}

// Remove deletes the first record whose name matches name case-insensitively
// and returns it.
func (r *Router) Remove(ctx context.Context, name string) (birthday.Record, error) {
	if name == "" {
		return birthday.Record{}, fmt.Errorf("%w: name is required", ErrMalformed)
	}
	var removed birthday.Record
	err := r.Store.Update(ctx, func(roster birthday.Roster) (birthday.Roster, error) {
		i := roster.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		removed = roster[i]
		return append(roster[:i], roster[i+1:]...), nil
	})
	return removed, err
}

// Update replaces the date and handle of the record named name, keeping its
// name and position, and returns the updated record.
func (r *Router) Update(ctx context.Context, name, date, handle string) (birthday.Record, error) {
	if name == "" || date == "" || handle == "" {
		return birthday.Record{}, fmt.Errorf("%w: name, date and username are required", ErrMalformed)
	}
	if err := birthday.ValidateDate(date); err != nil {
		return birthday.Record{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var updated birthday.Record
	err := r.Store.Update(ctx, func(roster birthday.Roster) (birthday.Roster, error) {
		i := roster.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		roster[i].Date = date
		roster[i].Handle = handle
		updated = roster[i]
		return roster, nil
	})
	return updated, err
}

// List returns the roster.
func (r *Router) List(ctx context.Context) birthday.Roster {
	return r.Store.Roster(ctx)
}

// SetGreeting saves template after checking that it has both placeholders.
func (r *Router) SetGreeting(ctx context.Context, template string) error {
	cfg := birthday.GreetingConfig{Template: template}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.Store.UpdateConfig(ctx, func(birthday.GreetingConfig) (birthday.GreetingConfig, error) {
		return cfg, nil
	})
}

// Greeting returns the current greeting template.
func (r *Router) Greeting(ctx context.Context) string {
	return r.Store.Config(ctx).Template
}

// Test runs the greeting routine for today right away. It doesn't prevent the
// scheduled run from greeting the same people again.
func (r *Router) Test(ctx context.Context) (birthday.SweepResult, error) {
	return r.Sweeper.Sweep(ctx, birthday.Day(r.clock().Now()))
}

// splitArgs returns the arguments of add and update: name, date and handle.
// Extra words are ignored.
func splitArgs(args string) (name, date, handle string, ok bool) {
	f := strings.Fields(args)
	if len(f) < 3 {
		return "", "", "", false
	}
	return f[0], f[1], f[2], true
}

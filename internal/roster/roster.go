// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package roster persists the birthday roster and the greeting configuration
// as two JSON documents in a [store.Store].
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.astrophena.name/bdaybot/internal/birthday"
	"go.astrophena.name/bdaybot/internal/metrics"
	"go.astrophena.name/bdaybot/internal/store"
)

// Keys of the documents in the underlying store.
const (
	RosterKey = "birthdays"
	ConfigKey = "config"
)

// ErrCorrupt wraps errors about persisted documents that can't be decoded.
var ErrCorrupt = errors.New("corrupt document")

// Options configure a [Store].
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Store reads and writes the roster and the greeting configuration. Callers
// always get copies; mutations go through [Store.Update] and
// [Store.UpdateConfig], which are serialized.
type Store struct {
	kv      store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex // serializes read-modify-write cycles
}

// New returns a Store over kv.
func New(kv store.Store, opts Options) *Store {
	s := &Store{
		kv:      kv,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// LoadRoster returns the persisted roster. A missing document is an empty
// roster. Undecodable data yields an error wrapping [ErrCorrupt].
func (s *Store) LoadRoster(ctx context.Context) (birthday.Roster, error) {
	b, err := s.kv.Get(ctx, RosterKey)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	if b == nil {
		return birthday.Roster{}, nil
	}
	var r birthday.Roster
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: roster: %v", ErrCorrupt, err)
	}
	if r == nil {
		r = birthday.Roster{}
	}
	return r, nil
}

// SaveRoster replaces the persisted roster.
func (s *Store) SaveRoster(ctx context.Context, r birthday.Roster) error {
	if r == nil {
		r = birthday.Roster{}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, RosterKey, b); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}
	return nil
}

// configDocument accepts the legacy {"greeting": "..."} form too.
type configDocument struct {
	Template string `json:"template,omitempty"`
	Greeting string `json:"greeting,omitempty"`
}

// LoadConfig returns the persisted greeting configuration, or
// [birthday.DefaultConfig] if there is none. Undecodable data or a template
// without placeholders yields an error wrapping [ErrCorrupt].
func (s *Store) LoadConfig(ctx context.Context) (birthday.GreetingConfig, error) {
	b, err := s.kv.Get(ctx, ConfigKey)
	if err != nil {
		return birthday.GreetingConfig{}, fmt.Errorf("reading config: %w", err)
	}
	if b == nil {
		return birthday.DefaultConfig(), nil
	}
	var doc configDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return birthday.GreetingConfig{}, fmt.Errorf("%w: config: %v", ErrCorrupt, err)
	}
	cfg := birthday.GreetingConfig{Template: doc.Template}
	if cfg.Template == "" {
		cfg.Template = doc.Greeting
	}
	if err := cfg.Validate(); err != nil {
		return birthday.GreetingConfig{}, fmt.Errorf("%w: config: %v", ErrCorrupt, err)
	}
	return cfg, nil
}

// SaveConfig replaces the persisted greeting configuration.
func (s *Store) SaveConfig(ctx context.Context, cfg birthday.GreetingConfig) error {
	b, err := json.MarshalIndent(configDocument{Template: cfg.Template}, "", "  ")
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, ConfigKey, b); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Roster is like [Store.LoadRoster], but logs any error and returns an empty
// roster instead.
func (s *Store) Roster(ctx context.Context) birthday.Roster {
	r, err := s.LoadRoster(ctx)
	if err != nil {
		s.recovered(ctx, "roster", err)
		return birthday.Roster{}
	}
	return r
}

// Config is like [Store.LoadConfig], but logs any error and returns
// [birthday.DefaultConfig] instead.
func (s *Store) Config(ctx context.Context) birthday.GreetingConfig {
	cfg, err := s.LoadConfig(ctx)
	if err != nil {
		s.recovered(ctx, "config", err)
		return birthday.DefaultConfig()
	}
	return cfg
}

func (s *Store) recovered(ctx context.Context, document string, err error) {
	s.metrics.StoreRecovered(document)
	s.logger.WarnContext(ctx, "using default document", "document", document, "err", err)
}

// Update loads the roster, passes it to f and saves what f returns. If f
// returns an error, nothing is saved.
//
// A corrupt roster is handed to f as empty, so the next successful update
// replaces it. Errors from the underlying store abort the update.
func (s *Store) Update(ctx context.Context, f func(birthday.Roster) (birthday.Roster, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.LoadRoster(ctx)
	if errors.Is(err, ErrCorrupt) {
		s.recovered(ctx, "roster", err)
		r, err = birthday.Roster{}, nil
	}
	if err != nil {
		return err
	}
	r, err = f(r)
	if err != nil {
		return err
	}
	return s.SaveRoster(ctx, r)
}

// UpdateConfig is like [Store.Update] for the greeting configuration.
func (s *Store) UpdateConfig(ctx context.Context, f func(birthday.GreetingConfig) (birthday.GreetingConfig, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.LoadConfig(ctx)
	if errors.Is(err, ErrCorrupt) {
		s.recovered(ctx, "config", err)
		cfg, err = birthday.DefaultConfig(), nil
	}
	if err != nil {
		return err
	}
	cfg, err = f(cfg)
	if err != nil {
		return err
	}
	return s.SaveConfig(ctx, cfg)
}

var _ birthday.Source = (*Store)(nil)

// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"go.astrophena.name/bdaybot/internal/birthday"
	"go.astrophena.name/bdaybot/internal/metrics"
	"go.astrophena.name/bdaybot/internal/store"
	"go.astrophena.name/bdaybot/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
)

func testStore(t *testing.T) (*Store, *store.Mem) {
	t.Helper()
	kv := store.NewMem()
	return New(kv, Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics.New(prometheus.NewRegistry()),
	}), kv
}

type failingStore struct{ store.Store }

var errUnavailable = errors.New("database is unavailable")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errUnavailable }

func TestRosterRoundTrip(t *testing.T) {
	t.Parallel()

	cases := map[string]birthday.Roster{
		"empty": {},
		"one":   {{Name: "Bob", Date: "03-14", Handle: "b"}},
		"order preserved": {
			{Name: "Zed", Date: "12-31", Handle: "z"},
			{Name: "Ana", Date: "01-01", Handle: "ana"},
			{Name: "Émile", Date: "02-29", Handle: "émile"},
		},
		"unicode and spaces": {{Name: "Мария", Date: "05-09", Handle: "maria_k"}},
	}

	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, _ := testStore(t)
			ctx := context.Background()
			if err := s.SaveRoster(ctx, r); err != nil {
				t.Fatal(err)
			}
			got, err := s.LoadRoster(ctx)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, r)
		})
	}
}

func TestLoadRosterMissing(t *testing.T) {
	t.Parallel()
	s, _ := testStore(t)
	r, err := s.LoadRoster(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, r, birthday.Roster{})
}

func TestCorruptDocuments(t *testing.T) {
	t.Parallel()

	s, kv := testStore(t)
	ctx := context.Background()

	kv.Set(ctx, RosterKey, []byte(`{"not": "a list"`))
	kv.Set(ctx, ConfigKey, []byte(`{"template": "no placeholders"}`))

	if _, err := s.LoadRoster(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("LoadRoster() error = %v, want ErrCorrupt", err)
	}
	if _, err := s.LoadConfig(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("LoadConfig() error = %v, want ErrCorrupt", err)
	}

	testutil.AssertEqual(t, s.Roster(ctx), birthday.Roster{})
	testutil.AssertEqual(t, s.Config(ctx), birthday.DefaultConfig())

	// Next update replaces the corrupt roster.
	bob := birthday.Record{Name: "Bob", Date: "03-14", Handle: "b"}
	if err := s.Update(ctx, func(r birthday.Roster) (birthday.Roster, error) {
		testutil.AssertEqual(t, r, birthday.Roster{})
		return append(r, bob), nil
	}); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, s.Roster(ctx), birthday.Roster{bob})
}

func TestStoreFailures(t *testing.T) {
	t.Parallel()

	s := New(failingStore{store.NewMem()}, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	// Reads collapse to defaults.
	testutil.AssertEqual(t, s.Roster(ctx), birthday.Roster{})
	testutil.AssertEqual(t, s.Config(ctx), birthday.DefaultConfig())

	// Updates must not overwrite data they couldn't read.
	called := false
	err := s.Update(ctx, func(r birthday.Roster) (birthday.Roster, error) {
		called = true
		return r, nil
	})
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("Update() error = %v, want %v", err, errUnavailable)
	}
	testutil.AssertEqual(t, called, false)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		stored string
		want   birthday.GreetingConfig
	}{
		"missing": {
			want: birthday.DefaultConfig(),
		},
		"template": {
			stored: `{"template": "Hi {name} @{username}"}`,
			want:   birthday.GreetingConfig{Template: "Hi {name} @{username}"},
		},
		"legacy greeting": {
			stored: `{"greeting": "🎉 {name} (@{username})"}`,
			want:   birthday.GreetingConfig{Template: "🎉 {name} (@{username})"},
		},
		"template wins over greeting": {
			stored: `{"template": "A {name} {username}", "greeting": "B {name} {username}"}`,
			want:   birthday.GreetingConfig{Template: "A {name} {username}"},
		},
		"garbage": {
			stored: `[1, 2, 3]`,
			want:   birthday.DefaultConfig(),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, kv := testStore(t)
			ctx := context.Background()
			if tc.stored != "" {
				kv.Set(ctx, ConfigKey, []byte(tc.stored))
			}
			testutil.AssertEqual(t, s.Config(ctx), tc.want)
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	t.Parallel()

	s, _ := testStore(t)
	ctx := context.Background()

	const tmpl = "Поздравляем, {name}! @{username}"
	if err := s.UpdateConfig(ctx, func(cfg birthday.GreetingConfig) (birthday.GreetingConfig, error) {
		testutil.AssertEqual(t, cfg, birthday.DefaultConfig())
		cfg.Template = tmpl
		return cfg, nil
	}); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, s.Config(ctx).Template, tmpl)

	errAbort := errors.New("abort")
	if err := s.UpdateConfig(ctx, func(cfg birthday.GreetingConfig) (birthday.GreetingConfig, error) {
		return birthday.GreetingConfig{Template: "x"}, errAbort
	}); !errors.Is(err, errAbort) {
		t.Fatalf("UpdateConfig() error = %v, want %v", err, errAbort)
	}
	testutil.AssertEqual(t, s.Config(ctx).Template, tmpl)
}

func TestConcurrentUpdates(t *testing.T) {
	t.Parallel()

	s, _ := testStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, func(r birthday.Roster) (birthday.Roster, error) {
				return append(r, birthday.Record{Name: string(rune('A' + i)), Date: "01-01", Handle: "x"}), nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, len(s.Roster(ctx)), n)
}

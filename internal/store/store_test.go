// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.astrophena.name/bdaybot/internal/testutil"

	"github.com/alicebob/miniredis/v2"
)

func TestMem(t *testing.T) {
	t.Parallel()
	testStore(t, NewMem())
}

func TestFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)

	// Every key is a separate document.
	b, err := os.ReadFile(filepath.Join(dir, "key1.json"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), `{"template":"hi"}`)

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := s.Set(context.Background(), key, []byte("{}")); err == nil {
			t.Errorf("Set(%q) must fail", key)
		}
	}
}

func TestJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)

	if err := s.Set(context.Background(), "bad", []byte("not json")); err == nil {
		t.Fatal("Set must reject invalid JSON")
	}

	// Reopen and check that data survived.
	s2, err := NewJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	v, err := s2.Get(context.Background(), "key2")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), `[{"name":"Bob","date":"03-14","username":"b"}]`)
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "bdaybot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestPostgres(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, databaseURL)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Clean up the table before running the test.
	if _, err := s.pool.Exec(ctx, "DELETE FROM bdaybot_kv"); err != nil {
		t.Fatal(err)
	}

	testStore(t, s)
}

func TestRedis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	s, err := NewRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)

	raw, err := mr.Get(RedisKeyPrefix + "key1")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, raw, `{"template":"hi"}`)
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Test Get non-existent key.
	v, err := s.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("got %q, want nil", v)
	}

	// Test Set and Get.
	if err := s.Set(ctx, "key1", []byte(`{"template":"bye"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "key1", []byte(`{"template":"hi"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "key2", []byte(`[{"name":"Bob","date":"03-14","username":"b"}]`)); err != nil {
		t.Fatal(err)
	}

	v, err = s.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), `{"template":"hi"}`)

	v, err = s.Get(ctx, "key2")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), `[{"name":"Bob","date":"03-14","username":"b"}]`)

	// Mutating a returned value doesn't affect the store.
	v[0] = 'X'
	v, err = s.Get(ctx, "key2")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v[0]), "[")
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cases := map[string]struct {
		url     string
		wantErr error
		check   func(*testing.T, Store)
	}{
		"plain path": {
			url: filepath.Join(dir, "plain"),
			check: func(t *testing.T, s Store) {
				fs, ok := s.(*Files)
				if !ok {
					t.Fatalf("got %T, want *Files", s)
				}
				testutil.AssertEqual(t, fs.Dir(), filepath.Join(dir, "plain"))
			},
		},
		"files": {
			url: "files://" + filepath.Join(dir, "files"),
			check: func(t *testing.T, s Store) {
				fs, ok := s.(*Files)
				if !ok {
					t.Fatalf("got %T, want *Files", s)
				}
				testutil.AssertEqual(t, fs.Dir(), filepath.Join(dir, "files"))
			},
		},
		"jsonfile": {
			url: "jsonfile://" + filepath.Join(dir, "state.json"),
			check: func(t *testing.T, s Store) {
				if _, ok := s.(*JSONFile); !ok {
					t.Fatalf("got %T, want *JSONFile", s)
				}
			},
		},
		"sqlite": {
			url: "sqlite://" + filepath.Join(dir, "bdaybot.db"),
			check: func(t *testing.T, s Store) {
				if _, ok := s.(*SQLite); !ok {
					t.Fatalf("got %T, want *SQLite", s)
				}
			},
		},
		"mem": {
			url: "mem://",
			check: func(t *testing.T, s Store) {
				if _, ok := s.(*Mem); !ok {
					t.Fatalf("got %T, want *Mem", s)
				}
			},
		},
		"unknown scheme": {
			url:     "ftp://example.com/roster",
			wantErr: ErrUnknownScheme,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Open(context.Background(), tc.url)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Open(%q) error = %v, want %v", tc.url, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			tc.check(t, s)
		})
	}
}

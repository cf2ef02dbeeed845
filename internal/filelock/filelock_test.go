// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build unix

package filelock

import (
	"errors"
	"path/filepath"
	"testing"

	"go.astrophena.name/bdaybot/internal/testutil"
)

func TestAcquire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".bdaybot.lock")
	first, err := Acquire(path, "pid=123\n")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, first.Path(), path)

	if _, err := Acquire(path, "pid=456\n"); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("want %v, got %v", ErrAlreadyLocked, err)
	}
	owner, err := Owner(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, owner, "pid=123")
	testutil.AssertEqual(t, IsLocked(path), true)

	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	// Second release is a no-op.
	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, IsLocked(path), false)

	second, err := Acquire(path, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { second.Release() })
}
